package syncx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cnpmnc/assignment/internal/db"
)

const (
	TypeSubmissionCompleted = "SubmissionCompleted"
	defaultSiteID           = "local"
)

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

// EventRepo appends to event_log. Pass a *sql.Tx to make the event part of
// the caller's transaction.
type EventRepo struct{ siteID string }

func NewEventRepo(siteID string) *EventRepo {
	if siteID == "" {
		siteID = defaultSiteID
	}
	return &EventRepo{siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, ex db.Execer, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(buf), time.Now().Unix())
	return err
}
