package server

import (
	"errors"
	"log/slog"

	"github.com/samber/lo"

	"github.com/NicolasHaas/sosmeet/pkg/model"
	"github.com/NicolasHaas/sosmeet/pkg/protocol"
	"github.com/NicolasHaas/sosmeet/pkg/store"
)

// Client-facing error texts.
const (
	msgLoginFirst      = "You must login first."
	msgAlreadyLoggedIn = "already logged in"
	msgSuperseded      = "Logged in from another connection."
	msgInternal        = "internal error"
)

// validationErrors are model errors caused by client input. Their text is
// sent back verbatim.
var validationErrors = []error{
	model.ErrUsernameEmpty,
	model.ErrUsernameTooShort,
	model.ErrUsernameTooLong,
	model.ErrUsernameInvalidChars,
	model.ErrSelfFriend,
	model.ErrGroupNameEmpty,
	model.ErrGroupNameTooLong,
}

// authzMessages are sent for authorization failures in strict mode only.
var authzMessages = map[error]string{
	model.ErrNotMember:     "Not a member of this group.",
	model.ErrGroupNotFound: "Group not found.",
	model.ErrCodeNotFound:  "Alarm code not found.",
}

// Dispatcher enforces login before any other command and routes each
// authenticated command to exactly one component. It is not safe for
// concurrent use; the Hub calls it from a single goroutine.
type Dispatcher struct {
	store   store.DataStore
	dir     *Directory
	router  *Router
	alarms  *AlarmEngine
	relay   *SignalingRelay
	policy  *AlarmValidator
	metrics *Metrics

	catalog     []model.AlarmCodeSpec
	strictAuthz bool
}

// DispatcherOptions holds the policy knobs of a Dispatcher.
type DispatcherOptions struct {
	Catalog     []model.AlarmCodeSpec // seeded into every new group
	Policy      *AlarmValidator
	StrictAuthz bool // reply with an error to unauthorized commands instead of dropping them
}

func NewDispatcher(st store.DataStore, dir *Directory, metrics *Metrics, opts DispatcherOptions) *Dispatcher {
	router := NewRouter(dir, metrics)
	if opts.Catalog == nil {
		opts.Catalog = model.DefaultAlarmCodes()
	}
	if opts.Policy == nil {
		opts.Policy = NewAlarmValidator(PolicyAccept, nil)
	}
	return &Dispatcher{
		store:       st,
		dir:         dir,
		router:      router,
		alarms:      NewAlarmEngine(st, router, metrics),
		relay:       NewSignalingRelay(st, dir, router, metrics),
		policy:      opts.Policy,
		metrics:     metrics,
		catalog:     opts.Catalog,
		strictAuthz: opts.StrictAuthz,
	}
}

// HandleFrame decodes one raw frame from c and handles it. Undecodable frames
// are dropped; unknown command types and wrong-typed fields get an error reply.
func (d *Dispatcher) HandleFrame(c *Conn, data []byte) {
	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		var verr *protocol.ValidationError
		if errors.As(err, &verr) {
			d.metrics.CommandsHandled.Add(1)
			if !d.admit(c, verr.Command) {
				return
			}
			if verr.Command == protocol.TypeLogin {
				d.metrics.FailedLogins.Add(1)
			}
			d.metrics.ValidationErrors.Add(1)
			d.router.Send(c, protocol.ErrorEvent{Message: verr.Message})
			return
		}
		var unknown *protocol.UnknownTypeError
		if errors.As(err, &unknown) {
			d.metrics.UnknownCommands.Add(1)
			slog.Debug("unknown command type", "session", c.id, "type", unknown.Type)
			d.router.Send(c, protocol.ErrorEvent{Message: unknown.Error()})
			return
		}
		d.metrics.DecodeFailures.Add(1)
		slog.Debug("discarding undecodable frame", "session", c.id, "err", err)
		return
	}
	d.Handle(c, cmd)
}

// Handle runs a decoded command for c.
func (d *Dispatcher) Handle(c *Conn, cmd protocol.Command) {
	d.metrics.CommandsHandled.Add(1)

	if !d.admit(c, cmd.CommandType()) {
		return
	}
	if login, ok := cmd.(protocol.Login); ok {
		d.handleLogin(c, login)
		return
	}
	if err := protocol.Validate(cmd); err != nil {
		d.reject(c, cmd, err)
		return
	}

	var err error
	switch cmd := cmd.(type) {
	case protocol.AddFriend:
		err = d.handleAddFriend(c, cmd)
	case protocol.CreateGroup:
		err = d.handleCreateGroup(c, cmd)
	case protocol.AddMember:
		err = d.handleAddMember(c, cmd)
	case protocol.CreateAlarmCode:
		err = d.handleCreateAlarmCode(c, cmd)
	case protocol.TriggerAlarm:
		_, _, err = d.alarms.Trigger(cmd.GroupID, cmd.CodeID, c.username, cmd.MessageOverride)
	case protocol.CallPresence:
		err = d.handleCallPresence(c, cmd)
	case protocol.WebRTC:
		d.relay.Relay(c.username, cmd.To, cmd.GroupID, cmd.Payload)
	}
	if err != nil {
		d.reject(c, cmd, err)
	}
}

// admit applies the session gates for a command of type typ and answers the
// ones that fail: a superseded session, a second login, or any other command
// before login.
func (d *Dispatcher) admit(c *Conn, typ string) bool {
	switch {
	case c.superseded:
		d.router.Send(c, protocol.ErrorEvent{Message: msgSuperseded})
		return false
	case typ == protocol.TypeLogin && c.username != "":
		d.router.Send(c, protocol.ErrorEvent{Message: msgAlreadyLoggedIn})
		return false
	case typ != protocol.TypeLogin && c.username == "":
		d.router.Send(c, protocol.ErrorEvent{Message: msgLoginFirst})
		return false
	}
	return true
}

// Disconnect unbinds c if it is still the live connection for its user.
func (d *Dispatcher) Disconnect(c *Conn) {
	if c.username == "" {
		return
	}
	if d.dir.Unbind(c.username, c) {
		slog.Debug("session unbound", "session", c.id, "user", c.username)
	} else {
		slog.Debug("superseded session closed", "session", c.id, "user", c.username)
	}
}

func (d *Dispatcher) handleLogin(c *Conn, cmd protocol.Login) {
	if err := protocol.Validate(cmd); err != nil {
		d.metrics.FailedLogins.Add(1)
		d.reject(c, cmd, err)
		return
	}

	user, err := d.store.EnsureUser(cmd.Username)
	if err != nil {
		d.metrics.FailedLogins.Add(1)
		d.reject(c, cmd, err)
		return
	}
	groups, err := d.store.GroupsFor(user.Username)
	if err != nil {
		d.reject(c, cmd, err)
		return
	}

	c.username = user.Username
	if prev := d.dir.Bind(user.Username, c); prev != nil {
		// The older socket stays open but may no longer act as this user.
		prev.superseded = true
		slog.Info("login superseded previous session", "user", user.Username, "session", c.id, "previous", prev.id)
	}
	d.metrics.Logins.Add(1)
	slog.Info("user logged in", "user", user.Username, "session", c.id, "groups", len(groups))

	d.router.Send(c, protocol.StateEvent{
		Me:      user.Username,
		Friends: append(make([]string, 0, len(user.Friends)), user.Friends...),
		Groups:  protocol.NewGroupViews(groups),
	})
}

func (d *Dispatcher) handleAddFriend(c *Conn, cmd protocol.AddFriend) error {
	if cmd.Friend == c.username {
		return &protocol.ValidationError{Field: "friend", Message: model.ErrSelfFriend.Error(), Err: model.ErrSelfFriend}
	}
	if _, _, err := d.store.AddFriend(c.username, cmd.Friend); err != nil {
		return err
	}
	slog.Debug("friends linked", "user", c.username, "friend", cmd.Friend)
	d.router.Deliver([]string{c.username, cmd.Friend}, protocol.FriendsUpdatedEvent{UserA: c.username, UserB: cmd.Friend})
	return nil
}

func (d *Dispatcher) handleCreateGroup(c *Conn, cmd protocol.CreateGroup) error {
	g, err := d.store.CreateGroup(c.username, cmd.Name, d.catalog)
	if err != nil {
		return err
	}
	d.metrics.GroupsCreated.Add(1)
	slog.Info("group created", "group", g.ID, "name", g.Name, "user", c.username, "codes", len(g.AlarmCodes))
	d.router.Send(c, protocol.GroupCreatedEvent{Group: protocol.NewGroupView(g)})
	return nil
}

func (d *Dispatcher) handleAddMember(c *Conn, cmd protocol.AddMember) error {
	g, err := d.store.AddMember(cmd.GroupID, c.username, cmd.Member)
	if err != nil {
		return err
	}
	slog.Info("member added", "group", g.ID, "member", cmd.Member, "user", c.username)
	d.router.Deliver(g.Members, protocol.GroupUpdatedEvent{Group: protocol.NewGroupView(g)})
	return nil
}

func (d *Dispatcher) handleCreateAlarmCode(c *Conn, cmd protocol.CreateAlarmCode) error {
	spec, err := d.policy.Apply(cmd.Spec())
	if err != nil {
		return err
	}
	g, code, err := d.store.CreateAlarmCode(cmd.GroupID, c.username, spec)
	if err != nil {
		return err
	}
	d.metrics.AlarmCodesCreated.Add(1)
	slog.Info("alarm code created", "group", g.ID, "code", code.ID, "title", code.Title, "mode", code.Mode, "user", c.username)
	d.router.Deliver(g.Members, protocol.GroupUpdatedEvent{Group: protocol.NewGroupView(g)})
	return nil
}

func (d *Dispatcher) handleCallPresence(c *Conn, cmd protocol.CallPresence) error {
	online, err := d.relay.Presence(cmd.GroupID, c.username)
	if err != nil {
		return err
	}
	d.router.Send(c, protocol.CallPresenceEvent{GroupID: cmd.GroupID, OnlineMembers: online})
	return nil
}

// reject reports a failed command. Validation failures are always answered;
// authorization failures only in strict mode.
func (d *Dispatcher) reject(c *Conn, cmd protocol.Command, err error) {
	var verr *protocol.ValidationError
	if errors.As(err, &verr) {
		d.metrics.ValidationErrors.Add(1)
		d.router.Send(c, protocol.ErrorEvent{Message: verr.Message})
		return
	}
	if target, ok := lo.Find(validationErrors, func(e error) bool { return errors.Is(err, e) }); ok {
		d.metrics.ValidationErrors.Add(1)
		d.router.Send(c, protocol.ErrorEvent{Message: target.Error()})
		return
	}
	for target, msg := range authzMessages {
		if errors.Is(err, target) {
			d.metrics.Unauthorized.Add(1)
			slog.Debug("command not authorized", "cmd", cmd.CommandType(), "user", c.username, "err", err)
			if d.strictAuthz {
				d.router.Send(c, protocol.ErrorEvent{Message: msg})
			}
			return
		}
	}

	slog.Error("command failed", "cmd", cmd.CommandType(), "user", c.username, "session", c.id, "err", err)
	d.router.Send(c, protocol.ErrorEvent{Message: msgInternal})
}
