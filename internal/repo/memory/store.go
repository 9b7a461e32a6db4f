// Package memory is an in-process store used for local runs and tests. It
// mirrors the postgres repositories method for method.
package memory

import (
	"sync"
	"time"

	"github.com/geocoder89/happenings/internal/auth"
	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/domain/user"
	"github.com/geocoder89/happenings/internal/domain/venue"
)

type likeKey struct {
	userID  string
	eventID string
}

type delivery struct {
	status string
	jobID  string
	err    string
}

// DB holds every table behind one lock so cross-table writes stay atomic.
type DB struct {
	mu sync.RWMutex

	events     map[string]event.Event
	order      []string
	venues     map[string]venue.Venue
	users      map[string]user.User
	sessions   map[string]auth.Session
	likes      map[likeKey]time.Time
	jobs       map[string]job.Job
	deliveries map[string]delivery

	now func() time.Time
}

func NewDB() *DB {
	return &DB{
		events:     make(map[string]event.Event),
		venues:     make(map[string]venue.Venue),
		users:      make(map[string]user.User),
		sessions:   make(map[string]auth.Session),
		likes:      make(map[likeKey]time.Time),
		jobs:       make(map[string]job.Job),
		deliveries: make(map[string]delivery),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (db *DB) Events() *EventsRepo         { return &EventsRepo{db: db} }
func (db *DB) Venues() *VenuesRepo         { return &VenuesRepo{db: db} }
func (db *DB) Users() *UsersRepo           { return &UsersRepo{db: db} }
func (db *DB) Sessions() *SessionsRepo     { return &SessionsRepo{db: db} }
func (db *DB) Likes() *LikesRepo           { return &LikesRepo{db: db} }
func (db *DB) Jobs() *JobsRepo             { return &JobsRepo{db: db} }
func (db *DB) Deliveries() *DeliveriesRepo { return &DeliveriesRepo{db: db} }

// enqueueLocked mirrors the unique idempotency key of the jobs table.
func (db *DB) enqueueLocked(req job.CreateRequest) job.Job {
	if req.IdempotencyKey != nil {
		for _, j := range db.jobs {
			if j.IdempotencyKey != nil && *j.IdempotencyKey == *req.IdempotencyKey {
				return j
			}
		}
	}
	j := job.New(req)
	db.jobs[j.ID] = j
	return j
}
