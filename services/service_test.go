package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/seking31/tms-server/models"
	"github.com/seking31/tms-server/validation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func projectDoc(id primitive.ObjectID, name string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "projectId", Value: "ABCDEF12"},
		{Key: "name", Value: name},
		{Key: "description", Value: "First project"},
		{Key: "startDate", Value: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "dateCreated", Value: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func taskDoc(id primitive.ObjectID, title string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: title},
		{Key: "description", Value: "Task for Project Alpha"},
		{Key: "status", Value: "Pending"},
		{Key: "priority", Value: "High"},
		{Key: "projectId", Value: "ABCDEF12"},
		{Key: "dateCreated", Value: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func newProjectService(mt *mtest.T) *ProjectService {
	return NewProjectService(mt.Coll, NewStoreBreaker("ProjectsStoreCB", time.Second), validation.New())
}

func newTaskService(mt *mtest.T) *TaskService {
	return NewTaskService(mt.Coll, NewStoreBreaker("TasksStoreCB", time.Second), validation.New())
}

// searchPattern pulls the regex for field out of the $or clauses of the last
// find command.
func searchPattern(mt *mtest.T, field string) primitive.Regex {
	mt.Helper()
	evt := mt.GetStartedEvent()
	if evt == nil || evt.CommandName != "find" {
		mt.Fatalf("expected a find command, got %+v", evt)
	}
	var filter struct {
		Or []bson.M `bson:"$or"`
	}
	if err := bson.Unmarshal(evt.Command.Lookup("filter").Document(), &filter); err != nil {
		mt.Fatalf("decode filter: %v", err)
	}
	for _, clause := range filter.Or {
		if re, ok := clause[field].(primitive.Regex); ok {
			return re
		}
	}
	mt.Fatalf("no clause for %s in %+v", field, filter.Or)
	return primitive.Regex{}
}

func TestProjectService_FindAll(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("empty collection", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		projects, err := newProjectService(mt).FindAll(context.Background())
		if err != nil {
			mt.Fatalf("FindAll: %v", err)
		}
		if projects == nil || len(projects) != 0 {
			mt.Fatalf("expected empty non-nil slice, got %#v", projects)
		}
	})

	mt.Run("returns documents", func(mt *mtest.T) {
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			projectDoc(first, "Project Alpha"), projectDoc(second, "Project Beta")))

		projects, err := newProjectService(mt).FindAll(context.Background())
		if err != nil {
			mt.Fatalf("FindAll: %v", err)
		}
		if len(projects) != 2 || projects[0].ID != first || projects[1].Name != "Project Beta" {
			mt.Fatalf("unexpected projects: %+v", projects)
		}
		if got := projects[0].StartDate.String(); got != "2021-01-01T00:00:00.000Z" {
			mt.Fatalf("unexpected startDate: %s", got)
		}
	})

	mt.Run("store failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 1, Name: "InternalError", Message: "boom",
		}))

		if _, err := newProjectService(mt).FindAll(context.Background()); err == nil {
			mt.Fatalf("expected error")
		}
	})
}

func TestProjectService_FindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("malformed id", func(mt *mtest.T) {
		_, err := newProjectService(mt).FindByID(context.Background(), "not-an-id")
		if !errors.Is(err, ErrInvalidID) {
			mt.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := newProjectService(mt).FindByID(context.Background(), primitive.NewObjectID().Hex())
		if !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	mt.Run("found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, projectDoc(id, "Project Alpha")))

		project, err := newProjectService(mt).FindByID(context.Background(), id.Hex())
		if err != nil {
			mt.Fatalf("FindByID: %v", err)
		}
		if project.ID != id || project.Name != "Project Alpha" {
			mt.Fatalf("unexpected project: %+v", project)
		}
	})
}

func TestProjectService_Search(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("blank term", func(mt *mtest.T) {
		_, err := newProjectService(mt).Search(context.Background(), "   ")
		if !errors.Is(err, ErrMissingSearchTerm) {
			mt.Fatalf("expected ErrMissingSearchTerm, got %v", err)
		}
		if evt := mt.GetStartedEvent(); evt != nil {
			mt.Fatalf("store must not be queried, saw %s", evt.CommandName)
		}
	})

	mt.Run("metacharacters are literal", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		term := "a.b*(c)"
		if _, err := newProjectService(mt).Search(context.Background(), term); err != nil {
			mt.Fatalf("Search: %v", err)
		}
		re := searchPattern(mt, "description")
		if re.Pattern != regexp.QuoteMeta(term) || re.Options != "i" {
			mt.Fatalf("unexpected regex: %+v", re)
		}
		compiled := regexp.MustCompile("(?i)" + re.Pattern)
		if !compiled.MatchString("x A.B*(C) y") || compiled.MatchString("axbbbc") {
			mt.Fatalf("pattern %q does not match literally", re.Pattern)
		}
	})
}

func TestProjectService_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns ids and dates", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())
		svc := newProjectService(mt)

		first, err := svc.Create(context.Background(), models.Project{Name: "Project Alpha", Description: "First"})
		if err != nil {
			mt.Fatalf("Create: %v", err)
		}
		second, err := svc.Create(context.Background(), models.Project{Name: "Project Beta", Description: "Second"})
		if err != nil {
			mt.Fatalf("Create: %v", err)
		}

		if first.ID.IsZero() || first.ID == second.ID {
			mt.Fatalf("expected distinct ids, got %s and %s", first.ID.Hex(), second.ID.Hex())
		}
		if first.ProjectID == "" || first.ProjectID == second.ProjectID {
			mt.Fatalf("expected distinct projectIds, got %q and %q", first.ProjectID, second.ProjectID)
		}
		if first.DateCreated.IsZero() || !first.StartDate.Equal(first.DateCreated.Time) || first.DateModified != nil {
			mt.Fatalf("unexpected dates: %+v", first)
		}
	})

	mt.Run("retries projectId collisions", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			mtest.CreateSuccessResponse(),
		)
		svc := newProjectService(mt)
		n := 0
		svc.newProjectID = func() string {
			n++
			return fmt.Sprintf("0000000%d", n)
		}

		project, err := svc.Create(context.Background(), models.Project{Name: "Project Alpha", Description: "First"})
		if err != nil {
			mt.Fatalf("Create: %v", err)
		}
		if project.ProjectID != "00000002" {
			mt.Fatalf("expected second id after collision, got %q", project.ProjectID)
		}
	})

	mt.Run("gives up after repeated collisions", func(mt *mtest.T) {
		for i := 0; i < projectIDAttempts; i++ {
			mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}))
		}

		if _, err := newProjectService(mt).Create(context.Background(), models.Project{Name: "Project Alpha", Description: "First"}); err == nil {
			mt.Fatalf("expected error after %d collisions", projectIDAttempts)
		}
	})

	mt.Run("rejects invalid record before writing", func(mt *mtest.T) {
		_, err := newProjectService(mt).Create(context.Background(), models.Project{Name: "ab", Description: "d"})
		var verr *validation.Error
		if !errors.As(err, &verr) {
			mt.Fatalf("expected validation error, got %v", err)
		}
		if evt := mt.GetStartedEvent(); evt != nil {
			mt.Fatalf("nothing should be written, saw %s", evt.CommandName)
		}
	})
}

func TestProjectService_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("merges patch", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, projectDoc(id, "Project Alpha")),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)
		name := "Project Omega"

		project, err := newProjectService(mt).Update(context.Background(), id.Hex(), models.ProjectPatch{Name: &name})
		if err != nil {
			mt.Fatalf("Update: %v", err)
		}
		if project.Name != name || project.Description != "First project" || project.ProjectID != "ABCDEF12" {
			mt.Fatalf("unexpected merge: %+v", project)
		}
		if project.DateModified == nil {
			mt.Fatalf("expected dateModified to be set")
		}
	})

	mt.Run("unknown id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := newProjectService(mt).Update(context.Background(), primitive.NewObjectID().Hex(), models.ProjectPatch{})
		if !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestProjectService_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deleted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		if err := newProjectService(mt).Delete(context.Background(), primitive.NewObjectID().Hex()); err != nil {
			mt.Fatalf("Delete: %v", err)
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := newProjectService(mt).Delete(context.Background(), primitive.NewObjectID().Hex())
		if !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTaskService_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	draft := models.Task{
		Title:       "Fix bug",
		Description: "d",
		Status:      models.StatusPending,
		Priority:    models.PriorityLow,
		ProjectID:   "42",
	}

	mt.Run("stores task", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		task, err := newTaskService(mt).Create(context.Background(), draft)
		if err != nil {
			mt.Fatalf("Create: %v", err)
		}
		if task.ID.IsZero() || task.ProjectID != "42" || task.DateCreated.IsZero() {
			mt.Fatalf("unexpected task: %+v", task)
		}
	})

	mt.Run("duplicate title", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}))

		_, err := newTaskService(mt).Create(context.Background(), draft)
		var verr *validation.Error
		if !errors.As(err, &verr) {
			mt.Fatalf("expected validation error, got %v", err)
		}
		if want := "data/title must be unique, a task titled 'Fix bug' already exists"; verr.Error() != want {
			mt.Fatalf("expected %q, got %q", want, verr.Error())
		}
	})
}

func TestTaskService_Search(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("matches every text field", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, taskDoc(id, "Task 1")))

		tasks, err := newTaskService(mt).Search(context.Background(), "high")
		if err != nil {
			mt.Fatalf("Search: %v", err)
		}
		if len(tasks) != 1 || tasks[0].Priority != models.PriorityHigh {
			mt.Fatalf("unexpected tasks: %+v", tasks)
		}
		if re := searchPattern(mt, "priority"); re.Pattern != "high" {
			mt.Fatalf("unexpected priority pattern: %+v", re)
		}
	})
}

func TestTaskService_UpdateAndDelete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("update merges status", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, taskDoc(id, "Task 1")),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)
		status := models.StatusCompleted

		task, err := newTaskService(mt).Update(context.Background(), id.Hex(), models.TaskPatch{Status: &status})
		if err != nil {
			mt.Fatalf("Update: %v", err)
		}
		if task.Status != models.StatusCompleted || task.Title != "Task 1" || task.DateModified == nil {
			mt.Fatalf("unexpected task: %+v", task)
		}
	})

	mt.Run("delete malformed id", func(mt *mtest.T) {
		err := newTaskService(mt).Delete(context.Background(), "42")
		if !errors.Is(err, ErrInvalidID) {
			mt.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})
}

func TestEnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		if err := EnsureIndexes(context.Background(), mt.Coll, mt.Coll); err != nil {
			mt.Fatalf("EnsureIndexes: %v", err)
		}
		for i := 0; i < 2; i++ {
			if evt := mt.GetStartedEvent(); evt == nil || evt.CommandName != "createIndexes" {
				mt.Fatalf("expected createIndexes, got %+v", evt)
			}
		}
	})
}

func TestStoreBreaker_IgnoresDomainErrors(t *testing.T) {
	cb := NewStoreBreaker("test", time.Minute)

	for i := 0; i < 10; i++ {
		_, _ = guard(cb, func() (int, error) { return 0, context.Canceled })
	}
	if _, err := guard(cb, func() (int, error) { return 1, nil }); err != nil {
		t.Fatalf("breaker tripped on non-infrastructure errors: %v", err)
	}

	boom := errors.New("connection reset")
	for i := 0; i < 4; i++ {
		_, _ = guard(cb, func() (int, error) { return 0, boom })
	}
	if _, err := guard(cb, func() (int, error) { return 1, nil }); err == nil {
		t.Fatalf("expected breaker to be open after consecutive failures")
	}
}

func TestProjectService_SearchRejectsUnencodableTerms(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("breaker stays closed", func(mt *mtest.T) {
		svc := newProjectService(mt)

		for i, term := range []string{"a\x00b", "\x00", "bad\xffutf8", "a\x00b", "a\x00b", "\xc3"} {
			_, err := svc.Search(context.Background(), term)
			var verr *validation.Error
			if !errors.As(err, &verr) {
				mt.Fatalf("search %d (%q): expected validation error, got %v", i, term, err)
			}
		}
		if evt := mt.GetStartedEvent(); evt != nil {
			mt.Fatalf("store must not be queried, saw %s", evt.CommandName)
		}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))
		if _, err := svc.FindAll(context.Background()); err != nil {
			mt.Fatalf("FindAll after rejected searches: %v", err)
		}
	})
}

func TestFindMany_EncodingErrorsDoNotTripBreaker(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unencodable filter", func(mt *mtest.T) {
		cb := NewStoreBreaker("ProjectsStoreCB", time.Minute)
		filter := bson.M{"name": primitive.Regex{Pattern: "a\x00b", Options: "i"}}

		for i := 0; i < 6; i++ {
			if _, err := findMany[models.Project](context.Background(), cb, mt.Coll, filter); err == nil {
				mt.Fatalf("attempt %d: expected encoding error", i)
			}
		}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))
		if _, err := findMany[models.Project](context.Background(), cb, mt.Coll, bson.M{}); err != nil {
			mt.Fatalf("breaker opened by encoding errors: %v", err)
		}
	})
}
