package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
	"github.com/trezcool/schooldesk/services/filestore"
	"github.com/trezcool/schooldesk/storage/database/inmem"
	"github.com/trezcool/schooldesk/tests"
)

type fixture struct {
	cli      *commandLine
	out      *bytes.Buffer
	usrRepo  user.Repository
	taskRepo task.Repository
	files    *filestore.Memory
}

func setup(t *testing.T) *fixture {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB & repos
	db := inmemdb.Open()
	f := &fixture{
		out:      new(bytes.Buffer),
		usrRepo:  inmemdb.NewUserRepository(db),
		taskRepo: inmemdb.NewTaskRepository(db),
		files:    filestore.NewMemory("https://files.test"),
	}
	usrSvc := user.NewService(f.usrRepo)
	policy := core.NewUploadPolicy(core.NewTestConfig().Storage)

	// start CLI
	f.cli = &commandLine{
		usrSvc:   usrSvc,
		taskSvc:  task.NewService(f.taskRepo, usrSvc, f.files, policy, nil, new(testutil.Logger)),
		validate: validate,
		in:       strings.NewReader(""),
		out:      f.out,
	}
	return f
}

type cliTest struct {
	name        string
	args        []string // without program name
	wantErr     error
	wantErrStr  string
	wantKind    core.Kind
	wantInvalid bool // validator.ValidationErrors
}

func (f *fixture) runCLITests(t *testing.T, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := f.cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			case tt.wantInvalid:
				var verrs validator.ValidationErrors
				assert.True(t, errors.As(err, &verrs), "err = %v", err)
			case tt.wantKind != core.KindUnknown:
				assert.Equal(t, tt.wantKind, core.KindOf(err), "err = %v", err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)

	f.runCLITests(t, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "whitelist: no subcommand", args: []string{"whitelist"}, wantErr: errHelp},
		{name: "whitelist: unknown subcommand", args: []string{"whitelist", "lol"}, wantErr: errHelp},
		{name: "setrole: no args", args: []string{"setrole"}, wantErr: errHelp},
		{name: "sweep-intents: bad duration", args: []string{"sweep-intents", "-older-than", "0s"}, wantErr: errHelp},
	})
	assert.Contains(t, f.out.String(), "sweep-intents")
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	f.runCLITests(t, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	})
}

func Test_commandLine_whitelist(t *testing.T) {
	f := setup(t)

	f.runCLITests(t, []cliTest{
		{name: "add: no email", args: []string{"whitelist", "add"}, wantErr: errHelp},
		{name: "add: invalid email", args: []string{"whitelist", "add", "-email", "lol"}, wantInvalid: true},
		{name: "add: unknown role", args: []string{"whitelist", "add", "-email", "an@school.test", "-role", "janitor"}, wantInvalid: true},
		{name: "add: default role", args: []string{"whitelist", "add", "-email", " An@School.test "}},
		{name: "add: vice principal", args: []string{"whitelist", "add", "-email", "vy@school.test", "-role", "vice_principal"}},
		{name: "remove: no email", args: []string{"whitelist", "remove"}, wantErr: errHelp},
	})

	entry, err := f.usrRepo.GetWhitelistEntry(context.Background(), "an@school.test")
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, entry.Role)
	assert.Equal(t, "admin-cli", entry.AddedBy)

	f.out.Reset()
	require.NoError(t, f.cli.run([]string{"admin", "whitelist", "list"}))
	assert.Contains(t, f.out.String(), "an@school.test")
	assert.Contains(t, f.out.String(), "vice_principal")

	f.runCLITests(t, []cliTest{
		{name: "remove", args: []string{"whitelist", "remove", "-email", "an@school.test"}},
		{name: "remove again", args: []string{"whitelist", "remove", "-email", "an@school.test"}, wantKind: core.KindNotFound},
	})
	_, err = f.usrRepo.GetWhitelistEntry(context.Background(), "an@school.test")
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func Test_commandLine_setRole(t *testing.T) {
	f := setup(t)

	usr := testutil.CreateUser(t, f.usrRepo, "g-123", "Hoa", "hoa@school.test", user.RoleTeacher, true)

	f.runCLITests(t, []cliTest{
		{name: "role but no user", args: []string{"setrole", "-role", "admin"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"setrole", "-user", usr.ID, "-role", "janitor"}, wantInvalid: true},
		{name: "unknown user", args: []string{"setrole", "-user", "nobody@school.test", "-role", "admin"}, wantErr: user.ErrNotFound},
		{name: "by id", args: []string{"setrole", "-user", usr.ID, "-role", "department_head"}},
	})
	refreshed, err := f.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleDepartmentHead, refreshed.Role)

	f.runCLITests(t, []cliTest{
		{name: "by email", args: []string{"setrole", "-user", "HOA@school.test", "-role", "Vice_Principal"}},
	})
	refreshed, err = f.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleVicePrincipal, refreshed.Role)
}

func Test_commandLine_sweepIntents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// an upload that never completed, with one file already stored
	stored, err := f.files.Upload(ctx, core.Upload{Name: "bao-cao.txt", ContentType: "text/plain", Content: strings.NewReader("...")}, nil)
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour).UTC()
	_, err = f.taskRepo.CreateIntent(ctx, task.SubmissionIntent{
		ID:        "intent-1",
		TaskID:    "task-1",
		TeacherID: "an",
		State:     task.IntentUploaded,
		FileIDs:   []string{stored.ID},
		CreatedAt: old,
		UpdatedAt: old,
	})
	require.NoError(t, err)

	isTerminal := false
	origIsTerminal := isTerminalFunc
	isTerminalFunc = func(fd int) bool { return isTerminal }
	defer func() { isTerminalFunc = origIsTerminal }()

	f.runCLITests(t, []cliTest{
		{name: "not a terminal", args: []string{"sweep-intents"}, wantErrStr: "not a terminal: pass -yes to proceed"},
	})

	isTerminal = true
	f.cli.in = strings.NewReader("n\n")
	f.runCLITests(t, []cliTest{
		{name: "declined", args: []string{"sweep-intents"}, wantErr: errAborted},
	})
	require.Len(t, f.files.Files(), 1)

	f.cli.in = strings.NewReader("y\n")
	f.out.Reset()
	f.runCLITests(t, []cliTest{
		{name: "too recent", args: []string{"sweep-intents", "-older-than", "3h"}},
	})
	assert.Contains(t, f.out.String(), "abandoned: 0")

	f.out.Reset()
	f.runCLITests(t, []cliTest{
		{name: "sweep", args: []string{"sweep-intents", "-yes"}},
	})
	assert.Contains(t, f.out.String(), "abandoned: 1, files deleted: 1")
	assert.Empty(t, f.files.Files())

	intent, err := f.taskRepo.GetIntent(ctx, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, task.IntentAbandoned, intent.State)
}
