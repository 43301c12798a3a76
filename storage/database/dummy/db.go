// Package dummydb is an in-memory implementation of every repository, used by tests and local runs.
package dummydb

import (
	"sync"

	"github.com/trezcool/matembezi/core/commitlog"
	"github.com/trezcool/matembezi/core/feed"
	"github.com/trezcool/matembezi/core/feedback"
	"github.com/trezcool/matembezi/core/notification"
	"github.com/trezcool/matembezi/core/stats"
	"github.com/trezcool/matembezi/core/summary"
	"github.com/trezcool/matembezi/core/user"
	"github.com/trezcool/matembezi/core/versioned"
)

type versionedTable struct {
	sync.RWMutex
	current   map[string]versioned.Record
	snapshots map[string][]versioned.Snapshot
	kinds     map[string][]string // kind -> ids, in creation order
}

type userTable struct {
	sync.RWMutex
	users map[string]user.User
}

type commitTable struct {
	sync.RWMutex
	entries map[string]commitlog.Entry
}

type summaryTable struct {
	sync.RWMutex
	summaries map[string]summary.Summary
}

type statsTable struct {
	sync.RWMutex
	answers     map[string]stats.StateAnswers
	calcOutputs map[string]stats.CalcOutput
	ruleLogs    map[string]stats.RuleAnswerLog
}

type feedbackTable struct {
	sync.RWMutex
	threads  map[string]feedback.Thread
	messages map[string][]feedback.Message // thread id -> messages
}

type feedTable struct {
	sync.RWMutex
	subscriptions map[string]feed.Subscriptions
	updates       map[string]feed.RecentUpdates
}

type notificationTable struct {
	sync.RWMutex
	notifications map[string]notification.EmailNotification
	payloads      map[string]notification.EmailPayload
}

type DB struct {
	versioned     *versionedTable
	users         *userTable
	commits       *commitTable
	summaries     *summaryTable
	stats         *statsTable
	feedback      *feedbackTable
	feed          *feedTable
	notifications *notificationTable
}

func Open() (*DB, error) {
	return &DB{
		versioned: &versionedTable{
			current:   make(map[string]versioned.Record),
			snapshots: make(map[string][]versioned.Snapshot),
			kinds:     make(map[string][]string),
		},
		users:     &userTable{users: make(map[string]user.User)},
		commits:   &commitTable{entries: make(map[string]commitlog.Entry)},
		summaries: &summaryTable{summaries: make(map[string]summary.Summary)},
		stats: &statsTable{
			answers:     make(map[string]stats.StateAnswers),
			calcOutputs: make(map[string]stats.CalcOutput),
			ruleLogs:    make(map[string]stats.RuleAnswerLog),
		},
		feedback: &feedbackTable{
			threads:  make(map[string]feedback.Thread),
			messages: make(map[string][]feedback.Message),
		},
		feed: &feedTable{
			subscriptions: make(map[string]feed.Subscriptions),
			updates:       make(map[string]feed.RecentUpdates),
		},
		notifications: &notificationTable{
			notifications: make(map[string]notification.EmailNotification),
			payloads:      make(map[string]notification.EmailPayload),
		},
	}, nil
}
