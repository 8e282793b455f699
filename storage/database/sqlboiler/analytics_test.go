package boiledrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schooldesk/core/analytics"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
	"github.com/trezcool/schooldesk/storage/database/sqlboiler"
	"github.com/trezcool/schooldesk/storage/database/sqlx"
	"github.com/trezcool/schooldesk/tests"
)

func TestAnalyticsLoader_LoadDataset(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	users := sqlxrepos.NewUserRepository(db)
	tasks := sqlxrepos.NewTaskRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	testutil.CreateUser(t, users, "t1", "An", "an@school.test", user.RoleTeacher, true)
	testutil.CreateUser(t, users, "h1", "Hoa", "hoa@school.test", user.RoleDepartmentHead, true)
	testutil.CreateUser(t, users, "t9", "Gone", "gone@school.test", user.RoleTeacher, false)
	testutil.CreateUser(t, users, "vp", "Vy", "vy@school.test", user.RoleVicePrincipal, true)

	newTask := func(semester int) task.Task {
		tsk, err := tasks.CreateTask(ctx, task.Task{
			ID: uuid.New().String(), SchoolYearID: "sy1", Semester: semester, Title: "x", MaxScore: 10,
			Deadline: now, CreatedBy: "vp", AssignedTo: []string{"t1", "h1"}, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		return tsk
	}
	k1, k2 := newTask(1), newTask(2)

	v1, err := tasks.SaveSubmissionVersion(ctx, task.Submission{
		ID: uuid.New().String(), TaskID: k1.ID, TeacherID: "t1", SubmittedAt: now, Version: 1, AutoScore: 10,
	})
	require.NoError(t, err)
	_, err = tasks.SaveSubmissionVersion(ctx, task.Submission{
		ID: uuid.New().String(), TaskID: k1.ID, TeacherID: "t1", SubmittedAt: now, Version: 2,
		PreviousVersionID: v1.ID, Score: testutil.FloatPtr(7),
	})
	require.NoError(t, err)
	_, err = tasks.SaveSubmissionVersion(ctx, task.Submission{
		ID: uuid.New().String(), TaskID: k2.ID, TeacherID: "h1", SubmittedAt: now, Version: 1,
	})
	require.NoError(t, err)

	loader := boiledrepos.NewAnalyticsLoader(db)

	ds, err := loader.LoadDataset(ctx, analytics.Scope{SchoolYearID: "sy1", Semester: 1})
	require.NoError(t, err)
	require.Len(t, ds.Tasks, 1)
	assert.Equal(t, []string{"t1", "h1"}, ds.Tasks[0].AssignedTo)
	require.Len(t, ds.Submissions, 1, "latest versions of in-scope tasks only")
	require.NotNil(t, ds.Submissions[0].Score)
	assert.Equal(t, 7.0, *ds.Submissions[0].Score)
	require.Len(t, ds.Teachers, 2, "active ranked roles only")
	assert.Equal(t, "An", ds.Teachers[0].DisplayName)

	ds, err = loader.LoadDataset(ctx, analytics.Scope{})
	require.NoError(t, err)
	assert.Len(t, ds.Tasks, 2)
	assert.Len(t, ds.Submissions, 2)
}
