// Package bootstrap seeds an empty deployment with sample data.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/seking31/tms-server/logging"
	"github.com/seking31/tms-server/models"
	"github.com/seking31/tms-server/services"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// sampleTask names its project instead of referencing it; the reference is
// resolved once the projects are stored.
type sampleTask struct {
	task        models.Task
	projectName string
}

func day(year int, month time.Month, d int) models.Timestamp {
	return models.NewTimestamp(time.Date(year, month, d, 0, 0, 0, 0, time.UTC))
}

func sampleProjects() []models.Project {
	return []models.Project{
		{
			Name:         "Project Alpha",
			Description:  "Initial phase of the project",
			StartDate:    day(2021, time.January, 1),
			EndDate:      day(2021, time.June, 1).Ptr(),
			DateCreated:  day(2021, time.January, 1),
			DateModified: day(2021, time.January, 5).Ptr(),
		},
	}
}

func sampleTasks() []sampleTask {
	return []sampleTask{
		{
			projectName: "Project Alpha",
			task: models.Task{
				Title:        "Complete project documentation",
				Description:  "Write the documentation for the project",
				Status:       models.StatusInProgress,
				Priority:     models.PriorityHigh,
				DueDate:      day(2021, time.January, 10).Ptr(),
				DateCreated:  day(2021, time.January, 1),
				DateModified: day(2021, time.January, 5).Ptr(),
			},
		},
	}
}

// CreateSampleData replaces the contents of both collections with the sample
// projects and tasks.
func CreateSampleData(ctx context.Context, projects, tasks *mongo.Collection) error {
	if _, err := projects.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clearing projects: %w", err)
	}
	if _, err := tasks.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clearing tasks: %w", err)
	}

	projectIDs := make(map[string]string)
	for _, project := range sampleProjects() {
		project.ID = primitive.NewObjectID()
		project.ProjectID = services.NewProjectID()
		if _, err := projects.InsertOne(ctx, project); err != nil {
			return fmt.Errorf("inserting project %q: %w", project.Name, err)
		}
		projectIDs[project.Name] = project.ProjectID
		logging.Logger.Infof("Event ID: SAMPLE_PROJECT_CREATED, Description: %s (%s)", project.Name, project.ProjectID)
	}

	docs := make([]interface{}, 0)
	for _, sample := range sampleTasks() {
		projectID, ok := projectIDs[sample.projectName]
		if !ok {
			return fmt.Errorf("sample task %q references unknown project %q", sample.task.Title, sample.projectName)
		}
		task := sample.task
		task.ID = primitive.NewObjectID()
		task.ProjectID = projectID
		docs = append(docs, task)
	}
	if len(docs) > 0 {
		if _, err := tasks.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("inserting sample tasks: %w", err)
		}
	}

	logging.Logger.Infof("Event ID: SAMPLE_DATA_CREATED, Description: %d projects and %d tasks inserted", len(projectIDs), len(docs))
	return nil
}
