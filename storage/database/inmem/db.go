// Package inmemdb holds map-backed repositories used by tests and local development.
package inmemdb

import (
	"sync"

	"github.com/trezcool/schooldesk/core/document"
	"github.com/trezcool/schooldesk/core/notification"
	"github.com/trezcool/schooldesk/core/org"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
)

type (
	DB struct {
		user     *userTable
		org      *orgTables
		task     *taskTables
		document *documentTables
		notif    *notificationTable
	}

	userTable struct {
		sync.RWMutex
		table     map[string]*user.User
		whitelist map[string]*user.WhitelistEntry
	}

	orgTables struct {
		sync.RWMutex
		departments map[string]*org.Department
		schoolYears map[string]*org.SchoolYear
	}

	taskTables struct {
		sync.RWMutex
		tasks       map[string]*task.Task
		submissions map[string]*task.Submission
		intents     map[string]*task.SubmissionIntent
	}

	documentTables struct {
		sync.RWMutex
		categories    map[string]*document.Category
		subCategories map[string]*document.SubCategory
		documents     map[string]*document.Document
		requests      map[string]*document.FileRequest
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{
			table:     make(map[string]*user.User),
			whitelist: make(map[string]*user.WhitelistEntry),
		},
		org: &orgTables{
			departments: make(map[string]*org.Department),
			schoolYears: make(map[string]*org.SchoolYear),
		},
		task: &taskTables{
			tasks:       make(map[string]*task.Task),
			submissions: make(map[string]*task.Submission),
			intents:     make(map[string]*task.SubmissionIntent),
		},
		document: &documentTables{
			categories:    make(map[string]*document.Category),
			subCategories: make(map[string]*document.SubCategory),
			documents:     make(map[string]*document.Document),
			requests:      make(map[string]*document.FileRequest),
		},
		notif: &notificationTable{table: make(map[string]*notification.Notification)},
	}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
