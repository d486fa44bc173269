package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/NicolasHaas/sosmeet/pkg/model"
	"github.com/NicolasHaas/sosmeet/pkg/protocol"
	"github.com/NicolasHaas/sosmeet/pkg/rbac"
	"github.com/NicolasHaas/sosmeet/pkg/store"
)

// AlarmEngine turns an alarm-code reference into a delivered alarm.
type AlarmEngine struct {
	store   store.DataStore
	router  *Router
	metrics *Metrics
	now     func() time.Time
}

func NewAlarmEngine(st store.DataStore, router *Router, metrics *Metrics) *AlarmEngine {
	return &AlarmEngine{
		store:   st,
		router:  router,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Trigger raises codeID in groupID on behalf of triggeredBy and sends it to
// every current member. Offline members miss it. The returned count is the
// number of connections that received the alarm.
func (e *AlarmEngine) Trigger(groupID, codeID, triggeredBy, override string) (*model.AlarmEvent, int, error) {
	g, err := e.store.GetGroup(groupID)
	if err != nil {
		return nil, 0, fmt.Errorf("alarm: trigger: %w", err)
	}
	if g == nil {
		return nil, 0, fmt.Errorf("alarm: trigger %s: %w", groupID, model.ErrGroupNotFound)
	}
	if err := rbac.Require(g, triggeredBy, model.PermTriggerAlarm); err != nil {
		return nil, 0, fmt.Errorf("alarm: trigger: %w", err)
	}
	code, ok := g.Code(codeID)
	if !ok {
		return nil, 0, fmt.Errorf("alarm: trigger %s/%s: %w", groupID, codeID, model.ErrCodeNotFound)
	}

	alarm := model.NewAlarmEvent(g.ID, code, triggeredBy, override, e.now())
	n := e.router.Deliver(g.Members, protocol.AlarmEvent{Alarm: protocol.NewAlarmView(alarm)})
	e.metrics.AlarmsTriggered.Add(1)

	slog.Info("alarm triggered",
		"alarm", alarm.ID, "group", g.ID, "code", code.Title, "mode", code.Mode,
		"user", triggeredBy, "members", len(g.Members), "delivered", n)
	return alarm, n, nil
}
