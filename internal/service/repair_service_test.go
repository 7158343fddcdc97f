package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

type fakeMaintenance struct {
	extras     int64
	mismatches int64
	active     []bool
}

func (f *fakeMaintenance) SetExtraBSkillsActive(_ context.Context, threshold int, active bool, limit int) (int64, error) {
	f.active = append(f.active, active)
	n := f.extras
	if n > int64(limit) {
		n = int64(limit)
	}
	f.extras -= n
	return n, nil
}

func (f *fakeMaintenance) SyncSubjectPrograms(_ context.Context, limit int) (int64, error) {
	n := f.mismatches
	if n > int64(limit) {
		n = int64(limit)
	}
	f.mismatches -= n
	return n, nil
}

func newRepair(w *world, maintenance *fakeMaintenance) *RepairService {
	return NewRepairService(RepairDeps{
		Catalog:     maintenance,
		Checker:     w.catalog,
		Students:    w.students,
		Progress:    w.progress,
		Enrollments: w.enrollments,
		History:     w.history,
		Seats:       w.sessions,
		Sessions:    w.sessionSvc,
		Plans:       w.planSvc,
	}, w.tx, nil, nil)
}

func TestRepairTasks(t *testing.T) {
	w := newWorld(t)
	svc := newRepair(w, &fakeMaintenance{})

	assert.Equal(t, []string{
		TaskBackfillEnrollmentProgress, TaskCheckCatalog, TaskDeactivateSkillsExtras, TaskFixSubjectProgramIDs,
		TaskNullZeroGrades, TaskRebuildSessionTracking, TaskRecomputeProgress, TaskReconcilePlans,
	}, svc.Tasks())

	_, err := svc.Run(context.Background(), "drop-everything", RepairOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRepairBatchesUntilDone(t *testing.T) {
	w := newWorld(t)
	maintenance := &fakeMaintenance{extras: 5, mismatches: 3}
	svc := newRepair(w, maintenance)

	result, err := svc.Run(context.Background(), TaskDeactivateSkillsExtras, RepairOptions{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Affected)
	assert.Equal(t, TaskDeactivateSkillsExtras, result.Task)
	assert.Equal(t, []bool{false, false, false, false}, maintenance.active)

	calls := w.tx.calls
	_, err = svc.Run(context.Background(), TaskDeactivateSkillsExtras, RepairOptions{Revert: true})
	require.NoError(t, err)
	assert.Equal(t, calls+1, w.tx.calls)
	assert.True(t, maintenance.active[len(maintenance.active)-1])

	result, err = svc.Run(context.Background(), TaskFixSubjectProgramIDs, RepairOptions{BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Affected)
}

func TestRepairNullZeroGrades(t *testing.T) {
	w := newWorld(t)
	w.history.rows = append(w.history.rows, models.AcademicHistory{ID: "h-zero", StudentID: testStudent, SubjectID: "bc-1", Grade: nullGrade(decPtr("0"))})
	w.session("s-1", strPtr("bc-1"), nil, models.SessionDone)
	w.seat("seat-1", "s-1", testStudent, models.SeatAttended, strPtr("bc-1"))
	w.sessions.seats["seat-1"].Grade = nullGrade(decPtr("0"))
	svc := newRepair(w, &fakeMaintenance{})

	result, err := svc.Run(context.Background(), TaskNullZeroGrades, RepairOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Affected)
	assert.False(t, w.sessions.seats["seat-1"].Grade.Valid)

	result, err = svc.Run(context.Background(), TaskNullZeroGrades, RepairOptions{})
	require.NoError(t, err)
	assert.Zero(t, result.Affected)
}

func TestRepairRecomputeAndBackfill(t *testing.T) {
	w := newWorld(t)
	w.addStudent("stu-2")
	w.enrollments.items["enrollment-new"] = &models.Enrollment{ID: "enrollment-new", StudentID: "stu-3", PlanID: testPlan, State: models.EnrollmentDraft}
	w.enrollments.progress["enrollment-new"] = map[string]models.ProgressState{}
	svc := newRepair(w, &fakeMaintenance{})

	result, err := svc.Run(context.Background(), TaskRecomputeProgress, RepairOptions{BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Affected)
	assert.ElementsMatch(t, []string{testStudent, "stu-2"}, w.students.locks)

	result, err = svc.Run(context.Background(), TaskBackfillEnrollmentProgress, RepairOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Affected)
	assert.Len(t, w.enrollments.progress["enrollment-new"], 5)
}

func TestRepairRebuildAndReconcile(t *testing.T) {
	w := newWorld(t)
	w.session("s-pool", nil, strPtr("pool-1"), models.SessionDone)
	w.seat("seat-1", "s-pool", testStudent, models.SeatAttended, nil)
	w.plans.reconcile[testPlan] = []string{"bc-1"}
	svc := newRepair(w, &fakeMaintenance{})

	result, err := svc.Run(context.Background(), TaskRebuildSessionTracking, RepairOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Affected)

	result, err = svc.Run(context.Background(), TaskReconcilePlans, RepairOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Affected)
	assert.Len(t, w.enrollments.progress["enrollment-0"], 1)
}

func TestRepairCheckCatalog(t *testing.T) {
	w := newWorld(t)
	svc := newRepair(w, &fakeMaintenance{})

	result, err := svc.Run(context.Background(), TaskCheckCatalog, RepairOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.True(t, result.Report.OK())

	w.catalogRepo.subjects["bc-2"].ProgramID = strPtr("prog-teens")
	w.catalogRepo.subjects["bs-1-1"].PrerequisiteIDs = []string{"ghost"}
	result, err = svc.Run(context.Background(), TaskCheckCatalog, RepairOptions{})
	require.NoError(t, err)
	assert.False(t, result.Report.OK())
	assert.Len(t, result.Report.Mismatches, 1)
	require.NotEmpty(t, result.Report.Problems)
	assert.Equal(t, "bs-1-1", result.Report.Problems[0].SubjectID)
	assert.Equal(t, int64(len(result.Report.Mismatches)+len(result.Report.Problems)), result.Affected)
}
