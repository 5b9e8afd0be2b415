package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/task-assignment-api/internal/mailer"
	"github.com/yukikurage/task-assignment-api/internal/models"
	"github.com/yukikurage/task-assignment-api/internal/notification"
	"github.com/yukikurage/task-assignment-api/internal/repository"
	"github.com/yukikurage/task-assignment-api/internal/retry"
	"github.com/yukikurage/task-assignment-api/internal/testutil"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu          sync.Mutex
	assigned    []notification.AssignmentNotice
	changed     []notification.StatusChangeNotice
	approaching []notification.DeadlineNotice
	passed      []notification.DeadlineNotice
}

func (r *recordingNotifier) TaskAssigned(_ context.Context, n notification.AssignmentNotice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigned = append(r.assigned, n)
}

func (r *recordingNotifier) TaskStatusChanged(_ context.Context, n notification.StatusChangeNotice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, n)
}

func (r *recordingNotifier) DeadlineApproaching(_ context.Context, n notification.DeadlineNotice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approaching = append(r.approaching, n)
}

func (r *recordingNotifier) DeadlinePassed(_ context.Context, n notification.DeadlineNotice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passed = append(r.passed, n)
}

// stalledSender holds every message until the delivery deadline passes
type stalledSender struct {
	mu    sync.Mutex
	calls int
}

func (s *stalledSender) Send(ctx context.Context, _ mailer.Message) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

type TaskServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	service  *TaskService
	users    *UserService
	notifier *recordingNotifier
	ctx      context.Context
	admin    *models.User
	alice    *models.User
	bob      *models.User
	today    models.Date
}

func (s *TaskServiceTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.ctx = context.Background()
	s.notifier = &recordingNotifier{}

	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	s.today = models.DateOf(start)

	taskRepo := repository.NewTaskRepository(s.db)
	userRepo := repository.NewUserRepository(s.db)
	log := testutil.Logger(s.T())
	s.service = NewTaskService(taskRepo, userRepo, s.notifier, log,
		WithClock(testutil.Clock(start)),
		WithUpcomingWindow(7),
	)
	s.users = NewUserService(userRepo, taskRepo, log)

	s.admin = testutil.CreateUser(s.T(), s.db, "admin", models.RoleAdmin, "password")
	s.alice = testutil.CreateUser(s.T(), s.db, "alice", models.RoleUser, "secret1")
	s.bob = testutil.CreateUser(s.T(), s.db, "bob", models.RoleUser, "secret2")
}

func (s *TaskServiceTestSuite) create(title string, assignee *models.User, deadlineOffset *int) *models.Task {
	input := CreateTaskInput{
		Title:       title,
		Description: title + " details",
		AssignedTo:  assignee.ID,
		AssignedBy:  s.admin.ID,
	}
	if deadlineOffset != nil {
		d := s.today.AddDays(*deadlineOffset)
		input.Deadline = &d
	}
	task, err := s.service.Create(s.ctx, input)
	s.Require().NoError(err)
	return task
}

// withStalledMail returns a service over the same data whose e-mail delivery
// blocks for longer than the request deadline
func (s *TaskServiceTestSuite) withStalledMail(sender *stalledSender) *TaskService {
	log := testutil.Logger(s.T())
	notifier := notification.NewEmailNotifier(sender, log, 300*time.Millisecond, &retry.Config{
		MaxAttempts:       1,
		InitialBackoff:    time.Millisecond,
		BackoffMultiplier: 1,
	})
	return NewTaskService(
		repository.NewTaskRepository(s.db),
		repository.NewUserRepository(s.db),
		notifier, log,
		WithClock(testutil.Clock(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))),
		WithUpcomingWindow(7),
	)
}

func offset(n int) *int { return &n }

func titles(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func (s *TaskServiceTestSuite) TestCreate() {
	task := s.create("Report", s.alice, offset(3))

	s.Equal(models.TaskStatusPending, task.Status)
	s.Equal(models.TaskPriorityMedium, task.Priority)
	s.Equal("alice", task.Assignee.Username)
	s.Equal("admin", task.Assigner.Username)

	history, err := s.service.GetHistory(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Nil(history[0].OldStatus)
	s.Equal(models.TaskStatusPending, history[0].NewStatus)

	s.Require().Len(s.notifier.assigned, 1)
	notice := s.notifier.assigned[0]
	s.Equal("alice@example.com", notice.Recipient.Email)
	s.Equal("admin", notice.AssignedBy)
	s.Equal("Report", notice.TaskTitle)
	s.Require().NotNil(notice.Deadline)
}

func (s *TaskServiceTestSuite) TestCreate_Rejections() {
	_, err := s.service.Create(s.ctx, CreateTaskInput{Title: "Audit", AssignedTo: s.admin.ID, AssignedBy: s.admin.ID})
	s.ErrorIs(err, ErrAssigneeIsAdmin)

	_, err = s.service.Create(s.ctx, CreateTaskInput{Title: "Audit", AssignedTo: 404, AssignedBy: s.admin.ID})
	s.ErrorIs(err, ErrAssigneeNotFound)

	_, err = s.service.Create(s.ctx, CreateTaskInput{Title: "   ", AssignedTo: s.alice.ID, AssignedBy: s.admin.ID})
	s.ErrorIs(err, ErrTitleRequired)

	_, err = s.service.Create(s.ctx, CreateTaskInput{Title: "Audit", AssignedTo: s.alice.ID, AssignedBy: s.admin.ID, Priority: "Urgent"})
	s.ErrorIs(err, ErrInvalidPriority)

	all, err := s.service.GetAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
	s.Empty(s.notifier.assigned)
}

func (s *TaskServiceTestSuite) TestFindAndGet() {
	task, err := s.service.FindByID(s.ctx, 404)
	s.NoError(err)
	s.Nil(task)

	_, err = s.service.GetTask(s.ctx, 404)
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestUpdateStatus_AuditsEveryTransition() {
	task := s.create("Report", s.alice, nil)

	for _, status := range []models.TaskStatus{
		models.TaskStatusInProgress,
		models.TaskStatusCompleted,
		models.TaskStatusCompleted,
		models.TaskStatusPending,
	} {
		updated, err := s.service.UpdateStatus(s.ctx, task.ID, status, s.alice.ID)
		s.Require().NoError(err)
		s.Equal(status, updated.Status)
	}

	history, err := s.service.GetHistory(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 5)
	s.Equal(models.TaskStatusPending, history[0].NewStatus)
	s.Equal(models.TaskStatusCompleted, *history[0].OldStatus)
	s.Equal(models.TaskStatusCompleted, history[1].NewStatus)
	s.Equal(models.TaskStatusCompleted, *history[1].OldStatus)
	for i := 1; i < len(history); i++ {
		s.True(history[i-1].ChangedAt.After(history[i].ChangedAt))
	}
}

func (s *TaskServiceTestSuite) TestUpdateStatus_NotifiesOtherParty() {
	task := s.create("Report", s.alice, nil)

	_, err := s.service.UpdateStatus(s.ctx, task.ID, models.TaskStatusInProgress, s.alice.ID)
	s.Require().NoError(err)
	_, err = s.service.UpdateStatus(s.ctx, task.ID, models.TaskStatusCompleted, s.admin.ID)
	s.Require().NoError(err)

	s.Require().Len(s.notifier.changed, 2)
	s.Equal("admin@example.com", s.notifier.changed[0].Recipient.Email)
	s.Equal(models.TaskStatusPending, s.notifier.changed[0].OldStatus)
	s.Equal(models.TaskStatusInProgress, s.notifier.changed[0].NewStatus)
	s.Equal("alice@example.com", s.notifier.changed[1].Recipient.Email)
}

func (s *TaskServiceTestSuite) TestUpdateStatus_Errors() {
	task := s.create("Report", s.alice, nil)

	_, err := s.service.UpdateStatus(s.ctx, task.ID, "Done", s.alice.ID)
	s.ErrorIs(err, ErrInvalidStatus)

	_, err = s.service.UpdateStatus(s.ctx, 404, models.TaskStatusCompleted, s.alice.ID)
	s.ErrorIs(err, ErrTaskNotFound)

	history, err := s.service.GetHistory(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *TaskServiceTestSuite) TestUpdate() {
	task := s.create("Report", s.alice, offset(3))

	title := "Annual Report"
	priority := models.TaskPriorityHigh
	updated, err := s.service.Update(s.ctx, task.ID, UpdateTaskInput{
		Title:         &title,
		Priority:      &priority,
		ClearDeadline: true,
	}, s.admin.ID)
	s.Require().NoError(err)
	s.Equal("Annual Report", updated.Title)
	s.Equal(models.TaskPriorityHigh, updated.Priority)
	s.Nil(updated.Deadline)
	s.Equal(models.TaskStatusPending, updated.Status)
}

func (s *TaskServiceTestSuite) TestUpdate_Reassign() {
	task := s.create("Report", s.alice, nil)

	bobID := s.bob.ID
	updated, err := s.service.Update(s.ctx, task.ID, UpdateTaskInput{AssignedTo: &bobID}, s.admin.ID)
	s.Require().NoError(err)
	s.Equal(s.bob.ID, updated.AssignedTo)
	s.Equal("bob", updated.Assignee.Username)

	s.Require().Len(s.notifier.assigned, 2)
	s.Equal("bob@example.com", s.notifier.assigned[1].Recipient.Email)

	adminID := s.admin.ID
	_, err = s.service.Update(s.ctx, task.ID, UpdateTaskInput{AssignedTo: &adminID}, s.admin.ID)
	s.ErrorIs(err, ErrAssigneeIsAdmin)

	missing := uint64(404)
	_, err = s.service.Update(s.ctx, task.ID, UpdateTaskInput{AssignedTo: &missing}, s.admin.ID)
	s.ErrorIs(err, ErrAssigneeNotFound)
}

func (s *TaskServiceTestSuite) TestUpdate_Errors() {
	task := s.create("Report", s.alice, nil)

	_, err := s.service.Update(s.ctx, task.ID, UpdateTaskInput{}, s.admin.ID)
	s.ErrorIs(err, ErrNoFieldsToUpdate)

	reloaded, err := s.service.GetTask(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(task.UpdatedAt.Unix(), reloaded.UpdatedAt.Unix())

	title := "New"
	_, err = s.service.Update(s.ctx, 404, UpdateTaskInput{Title: &title}, s.admin.ID)
	s.ErrorIs(err, ErrTaskNotFound)

	bad := models.TaskPriority("Urgent")
	_, err = s.service.Update(s.ctx, task.ID, UpdateTaskInput{Priority: &bad}, s.admin.ID)
	s.ErrorIs(err, ErrInvalidPriority)

	blank := " "
	_, err = s.service.Update(s.ctx, task.ID, UpdateTaskInput{Title: &blank}, s.admin.ID)
	s.ErrorIs(err, ErrTitleRequired)
}

func (s *TaskServiceTestSuite) TestOverdueAndUpcoming() {
	s.create("overdue", s.alice, offset(-1))
	done := s.create("overdue done", s.alice, offset(-3))
	s.create("today", s.bob, offset(0))
	s.create("week", s.alice, offset(7))
	s.create("later", s.alice, offset(8))
	s.create("undated", s.alice, nil)

	_, err := s.service.UpdateStatus(s.ctx, done.ID, models.TaskStatusCompleted, s.alice.ID)
	s.Require().NoError(err)

	all := ScopeFor(s.admin.ID, true)

	overdue, err := s.service.GetOverdueTasks(s.ctx, all)
	s.Require().NoError(err)
	s.Equal([]string{"overdue"}, titles(overdue))

	upcoming, err := s.service.GetUpcomingTasks(s.ctx, all, 7)
	s.Require().NoError(err)
	s.Equal([]string{"today", "week"}, titles(upcoming))

	upcoming, err = s.service.GetUpcomingTasks(s.ctx, all, 0)
	s.Require().NoError(err)
	s.Equal([]string{"today", "week"}, titles(upcoming))

	mine, err := s.service.GetUpcomingTasks(s.ctx, ScopeFor(s.alice.ID, false), 30)
	s.Require().NoError(err)
	s.Equal([]string{"week", "later"}, titles(mine))
}

func (s *TaskServiceTestSuite) TestListTasks_Scoped() {
	s.create("alice late", s.alice, offset(5))
	s.create("alice soon", s.alice, offset(1))
	s.create("bob report", s.bob, offset(2))

	mine, err := s.service.ListTasks(s.ctx, ListTasksInput{Scope: ScopeFor(s.alice.ID, false)})
	s.Require().NoError(err)
	s.Equal([]string{"alice soon", "alice late"}, titles(mine))

	all, err := s.service.ListTasks(s.ctx, ListTasksInput{Scope: ScopeFor(s.admin.ID, true)})
	s.Require().NoError(err)
	s.Equal([]string{"bob report", "alice soon", "alice late"}, titles(all))

	found, err := s.service.ListTasks(s.ctx, ListTasksInput{Scope: ScopeFor(s.alice.ID, false), Query: "report"})
	s.Require().NoError(err)
	s.Empty(found)

	found, err = s.service.Search(s.ctx, "REPORT", ScopeFor(s.admin.ID, true))
	s.Require().NoError(err)
	s.Equal([]string{"bob report"}, titles(found))

	pending := models.TaskStatusPending
	byStatus, err := s.service.ListTasks(s.ctx, ListTasksInput{Scope: ScopeFor(s.admin.ID, true), Status: &pending})
	s.Require().NoError(err)
	s.Equal([]string{"alice soon", "bob report", "alice late"}, titles(byStatus))

	bad := models.TaskStatus("Done")
	_, err = s.service.ListTasks(s.ctx, ListTasksInput{Scope: ScopeFor(s.admin.ID, true), Status: &bad})
	s.ErrorIs(err, ErrInvalidStatus)

	_, err = s.service.GetByStatus(s.ctx, bad)
	s.ErrorIs(err, ErrInvalidStatus)

	byUser, err := s.service.GetByAssignedUser(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Equal([]string{"bob report"}, titles(byUser))

	paged, err := s.service.ListTasks(s.ctx, ListTasksInput{Scope: ScopeFor(s.admin.ID, true), Offset: 1, Limit: 1})
	s.Require().NoError(err)
	s.Equal([]string{"alice soon"}, titles(paged))

	total, err := s.service.CountTasks(s.ctx, ListTasksInput{Scope: ScopeFor(s.alice.ID, false), Limit: 1})
	s.Require().NoError(err)
	s.EqualValues(2, total)

	_, err = s.service.CountTasks(s.ctx, ListTasksInput{Status: &bad})
	s.ErrorIs(err, ErrInvalidStatus)
}

func (s *TaskServiceTestSuite) TestGetStats() {
	s.create("a", s.alice, offset(-2))
	b := s.create("b", s.alice, offset(1))
	s.create("c", s.bob, nil)

	_, err := s.service.UpdateStatus(s.ctx, b.ID, models.TaskStatusInProgress, s.alice.ID)
	s.Require().NoError(err)

	stats, err := s.service.GetStats(s.ctx, ScopeFor(s.admin.ID, true))
	s.Require().NoError(err)
	s.Equal(repository.TaskStats{
		TotalTasks:      3,
		PendingCount:    2,
		InProgressCount: 1,
		OverdueCount:    1,
	}, stats)

	stats, err = s.service.GetStats(s.ctx, ScopeFor(s.bob.ID, false))
	s.Require().NoError(err)
	s.EqualValues(1, stats.TotalTasks)
	s.EqualValues(0, stats.OverdueCount)
}

func (s *TaskServiceTestSuite) TestDelete_KeepsHistory() {
	task := s.create("Report", s.alice, nil)

	ok, err := s.service.Delete(s.ctx, task.ID)
	s.Require().NoError(err)
	s.True(ok)

	_, err = s.service.Delete(s.ctx, task.ID)
	s.ErrorIs(err, ErrTaskNotFound)

	history, err := s.service.GetHistory(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *TaskServiceTestSuite) TestSendDeadlineReminders() {
	s.create("soon", s.alice, offset(2))
	s.create("late", s.bob, offset(-3))
	s.create("far", s.alice, offset(30))

	result, err := s.service.SendDeadlineReminders(s.ctx)
	s.Require().NoError(err)
	s.Equal(ReminderResult{Approaching: 1, Overdue: 1}, result)

	s.Require().Len(s.notifier.approaching, 1)
	s.Equal("alice@example.com", s.notifier.approaching[0].Recipient.Email)
	s.Equal(2, s.notifier.approaching[0].Days)

	s.Require().Len(s.notifier.passed, 1)
	s.Equal("bob@example.com", s.notifier.passed[0].Recipient.Email)
	s.Equal(3, s.notifier.passed[0].Days)
}

func (s *TaskServiceTestSuite) TestCreate_SlowMailDoesNotFailRequest() {
	sender := &stalledSender{}
	service := s.withStalledMail(sender)

	ctx, cancel := context.WithTimeout(s.ctx, 100*time.Millisecond)
	defer cancel()

	task, err := service.Create(ctx, CreateTaskInput{
		Title:      "Quarterly report",
		AssignedTo: s.alice.ID,
		AssignedBy: s.admin.ID,
	})
	s.Require().NoError(err)
	s.Equal("Quarterly report", task.Title)
	s.Equal("alice", task.Assignee.Username)
	s.Equal(1, sender.calls)

	var count int64
	s.Require().NoError(s.db.Model(&models.Task{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *TaskServiceTestSuite) TestSendDeadlineReminders_SlowMail() {
	s.create("soon", s.alice, offset(2))
	s.create("late", s.bob, offset(-3))

	sender := &stalledSender{}
	service := s.withStalledMail(sender)

	ctx, cancel := context.WithTimeout(s.ctx, 100*time.Millisecond)
	defer cancel()

	result, err := service.SendDeadlineReminders(ctx)
	s.Require().NoError(err)
	s.Equal(ReminderResult{Approaching: 1, Overdue: 1}, result)
	s.Equal(2, sender.calls)
}

// Admin assigns "Report" to alice, alice starts it, then the admin tries to
// remove alice's account.
func (s *TaskServiceTestSuite) TestScenario_DeleteReferencedUser() {
	task := s.create("Report", s.alice, offset(5))

	updated, err := s.service.UpdateStatus(s.ctx, task.ID, models.TaskStatusInProgress, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusInProgress, updated.Status)

	history, err := s.service.GetHistory(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("alice", history[0].Username)

	_, err = s.users.Delete(s.ctx, s.alice.ID)
	s.ErrorIs(err, ErrUserHasTasks)

	user, err := s.users.FindByID(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.NotNil(user)

	reloaded, err := s.service.GetTask(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(s.alice.ID, reloaded.AssignedTo)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
