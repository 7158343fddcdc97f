package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/internal/models"
	appErrors "github.com/benglish/academic-core/pkg/errors"
)

func newAgenda(w *world, notifications *fakeNotifications) *AgendaService {
	return NewAgendaService(w.sessions, w.students, w.catalog, w.historySvc, notifications, w.cache, 0, nil)
}

func (w *world) at(id string, offset time.Duration) {
	w.startAt(id, time.Now().Add(offset).Truncate(time.Minute))
}

func (w *world) startAt(id string, start time.Time) {
	s := w.sessions.items[id]
	s.DatetimeStart = start
	s.DatetimeEnd = start.Add(time.Hour)
}

func TestAgendaListsResolvedSessionsInOrder(t *testing.T) {
	w := newWorld(t)
	w.session("s-bc", strPtr("bc-1"), nil, models.SessionActive)
	w.at("s-bc", 30*time.Hour)
	w.session("s-pool", nil, strPtr("pool-1"), models.SessionStarted)
	w.at("s-pool", 20*time.Hour)
	w.session("s-draft", strPtr("bc-1"), nil, models.SessionDraft)
	w.sessions.items["s-draft"].IsPublished = false
	w.session("s-far", strPtr("bc-1"), nil, models.SessionActive)
	w.at("s-far", 10*24*time.Hour)
	w.session("s-unit2", strPtr("bc-2"), nil, models.SessionActive)
	w.sessions.items["s-unit2"].AudienceUnitFrom = 2
	w.session("s-done", strPtr("bc-1"), nil, models.SessionDone)
	w.seat("seat-1", "s-bc", testStudent, models.SeatReserved, strPtr("bc-1"))

	notifications := &fakeNotifications{viewed: map[string]bool{"user-1/s-pool": true}}
	svc := newAgenda(w, notifications)

	items, err := svc.Agenda(context.Background(), "user-1", testStudent, svc.Window(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "s-pool", items[0].SessionID)
	assert.Equal(t, "el-a", items[0].SubjectID)
	assert.Equal(t, 1, items[0].EffectiveUnit)
	assert.True(t, items[0].Viewed)
	assert.Nil(t, items[0].SeatState)

	assert.Equal(t, "s-bc", items[1].SessionID)
	assert.Equal(t, "U1-BC", items[1].SubjectCode)
	assert.False(t, items[1].Viewed)
	require.NotNil(t, items[1].SeatState)
	assert.Equal(t, models.SeatReserved, *items[1].SeatState)
}

func TestAgendaHidesExhaustedPools(t *testing.T) {
	w := newWorld(t)
	w.session("s-pool", nil, strPtr("pool-1"), models.SessionActive)
	w.attend(testStudent, "el-a", "el-b")
	svc := newAgenda(w, &fakeNotifications{})

	items, err := svc.Agenda(context.Background(), "", testStudent, svc.Window(0))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAgendaServesFromCacheUntilInvalidated(t *testing.T) {
	w := newWorld(t)
	w.session("s-bc", strPtr("bc-1"), nil, models.SessionActive)
	svc := newAgenda(w, &fakeNotifications{})
	fixed := time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	w.startAt("s-bc", fixed.Add(2*time.Hour))
	window := svc.Window(24 * time.Hour)

	items, err := svc.Agenda(context.Background(), "", testStudent, window)
	require.NoError(t, err)
	require.Len(t, items, 1)

	w.session("s-bs", strPtr("bs-1-1"), nil, models.SessionActive)
	w.startAt("s-bs", fixed.Add(3*time.Hour))

	items, err = svc.Agenda(context.Background(), "", testStudent, window)
	require.NoError(t, err)
	assert.Len(t, items, 1, "cached projection")

	w.cache.Invalidate(context.Background(), "agenda:"+testStudent+":*")
	items, err = svc.Agenda(context.Background(), "", testStudent, window)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestAgendaToleratesNotificationFailure(t *testing.T) {
	w := newWorld(t)
	w.session("s-bc", strPtr("bc-1"), nil, models.SessionActive)
	svc := newAgenda(w, &fakeNotifications{err: errors.New("redis down")})

	items, err := svc.Agenda(context.Background(), "user-1", testStudent, models.AgendaWindow{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Viewed)
}

func TestAgendaUnknownStudent(t *testing.T) {
	w := newWorld(t)
	svc := newAgenda(w, &fakeNotifications{})

	_, err := svc.Agenda(context.Background(), "", "ghost", svc.Window(0))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestMarkViewed(t *testing.T) {
	w := newWorld(t)
	w.session("s-bc", strPtr("bc-1"), nil, models.SessionActive)
	notifications := &fakeNotifications{}
	svc := newAgenda(w, notifications)

	require.NoError(t, svc.MarkViewed(context.Background(), "user-1", "s-bc"))
	assert.True(t, notifications.viewed["user-1/s-bc"])

	err := svc.MarkViewed(context.Background(), "user-1", "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
