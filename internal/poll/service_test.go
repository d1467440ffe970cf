package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"buildinghub_backend/internal/audience"
	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/email"
	"buildinghub_backend/internal/fanout"
	"buildinghub_backend/internal/notification"
	"buildinghub_backend/internal/oplog/oplogtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockPollRepository struct {
	mock.Mock
}

func (m *MockPollRepository) Create(ctx context.Context, p *Poll) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPollRepository) FindByID(ctx context.Context, id uuid.UUID) (*Poll, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Poll), args.Error(1)
}

func (m *MockPollRepository) ListByBuilding(ctx context.Context, buildingID uuid.UUID, includeDrafts bool) ([]Poll, error) {
	args := m.Called(ctx, buildingID, includeDrafts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Poll), args.Error(1)
}

func (m *MockPollRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error {
	return m.Called(ctx, id, from, to, at).Error(0)
}

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) AuthorizeManager(ctx context.Context, buildingID, userID uuid.UUID, role string) error {
	return m.Called(ctx, buildingID, userID, role).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev fanout.Event) (fanout.Report, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(fanout.Report), args.Error(1)
}

type MockReorderer struct {
	mock.Mock
}

func (m *MockReorderer) Reorder(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error {
	return m.Called(ctx, parentID, ids).Error(0)
}

type pollSuite struct {
	service   *ServiceImplementation
	repo      *MockPollRepository
	auth      *MockAuthorizer
	publisher *MockPublisher
	options   *MockReorderer
	polls     *MockReorderer
	recorder  *oplogtest.Recorder
}

var fixedNow = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

func setupPollServiceTestSuite() *pollSuite {
	s := &pollSuite{
		repo:      new(MockPollRepository),
		auth:      new(MockAuthorizer),
		publisher: new(MockPublisher),
		options:   new(MockReorderer),
		polls:     new(MockReorderer),
		recorder:  &oplogtest.Recorder{},
	}
	s.service = NewService(s.repo, s.auth, s.publisher, s.options, s.polls, s.recorder, zap.NewNop())
	s.service.now = func() time.Time { return fixedNow }
	return s
}

func TestPollService_CreatePoll(t *testing.T) {
	ctx := context.Background()
	buildingID, actor := uuid.New(), uuid.New()

	t.Run("creates a draft with trimmed options", func(t *testing.T) {
		s := setupPollServiceTestSuite()
		s.auth.On("AuthorizeManager", ctx, buildingID, actor, common.RoleClient).Return(nil)
		s.repo.On("Create", ctx, mock.MatchedBy(func(p *Poll) bool {
			return p.Status == StatusDraft && len(p.Options) == 2 && p.Options[0].Label == "Yes" && p.CreatedByID == actor
		})).Return(nil)

		p, err := s.service.CreatePoll(ctx, buildingID, actor, common.RoleClient, CreatePollRequest{
			Title:   " Garden party ",
			Options: []string{" Yes", "No "},
		})

		require.NoError(t, err)
		assert.Equal(t, "Garden party", p.Title)
		assert.Len(t, s.recorder.ByAction("polls.create"), 1)
		s.repo.AssertExpectations(t)
	})

	t.Run("forbidden without touching the store", func(t *testing.T) {
		s := setupPollServiceTestSuite()
		s.auth.On("AuthorizeManager", ctx, buildingID, actor, common.RoleTenant).Return(common.ErrForbidden)

		_, err := s.service.CreatePoll(ctx, buildingID, actor, common.RoleTenant, CreatePollRequest{Title: "x", Options: []string{"a", "b"}})

		assert.ErrorIs(t, err, common.ErrForbidden)
		s.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("store error is internal", func(t *testing.T) {
		s := setupPollServiceTestSuite()
		s.auth.On("AuthorizeManager", ctx, buildingID, actor, common.RoleAdmin).Return(nil)
		s.repo.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))

		_, err := s.service.CreatePoll(ctx, buildingID, actor, common.RoleAdmin, CreatePollRequest{Title: "x", Options: []string{"a", "b"}})

		assert.ErrorIs(t, err, common.ErrInternalServer)
	})
}

func TestPollService_PublishPoll(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()
	draft := func() *Poll {
		p := &Poll{BuildingID: uuid.New(), Title: "Paint the lobby?", Status: StatusDraft}
		p.ID = uuid.New()
		return p
	}

	t.Run("publishes and fans out", func(t *testing.T) {
		s := setupPollServiceTestSuite()
		p := draft()
		s.repo.On("FindByID", ctx, p.ID).Return(p, nil)
		s.auth.On("AuthorizeManager", ctx, p.BuildingID, actor, common.RoleClient).Return(nil)
		s.repo.On("TransitionStatus", ctx, p.ID, StatusDraft, StatusPublished, fixedNow).Return(nil)
		s.publisher.On("Publish", ctx, mock.MatchedBy(func(ev fanout.Event) bool {
			return ev.Action == "polls.publish" && ev.BuildingIDs[0] == p.BuildingID && ev.Email != nil
		})).Return(fanout.Report{Recipients: 12, Inserted: 12}, nil)

		resp, err := s.service.PublishPoll(ctx, p.ID, actor, common.RoleClient)

		require.NoError(t, err)
		assert.Equal(t, StatusPublished, resp.Poll.Status)
		assert.Equal(t, fixedNow, *resp.Poll.PublishedAt)
		assert.Equal(t, 12, resp.Notifications)
		s.publisher.AssertExpectations(t)
	})

	t.Run("notification failure does not fail the publish", func(t *testing.T) {
		s := setupPollServiceTestSuite()
		p := draft()
		s.repo.On("FindByID", ctx, p.ID).Return(p, nil)
		s.auth.On("AuthorizeManager", ctx, p.BuildingID, actor, common.RoleClient).Return(nil)
		s.repo.On("TransitionStatus", ctx, p.ID, StatusDraft, StatusPublished, fixedNow).Return(nil)
		s.publisher.On("Publish", ctx, mock.Anything).Return(fanout.Report{Inserted: 500}, errors.New("batch 2 failed"))

		resp, err := s.service.PublishPoll(ctx, p.ID, actor, common.RoleClient)

		require.NoError(t, err)
		assert.Equal(t, 500, resp.Notifications)
	})

	t.Run("already published is a conflict and notifies nobody", func(t *testing.T) {
		s := setupPollServiceTestSuite()
		p := draft()
		s.repo.On("FindByID", ctx, p.ID).Return(p, nil)
		s.auth.On("AuthorizeManager", ctx, p.BuildingID, actor, common.RoleClient).Return(nil)
		s.repo.On("TransitionStatus", ctx, p.ID, StatusDraft, StatusPublished, fixedNow).
			Return(common.ErrConflict.WithDetails("Poll is not draft."))

		_, err := s.service.PublishPoll(ctx, p.ID, actor, common.RoleClient)

		assert.ErrorIs(t, err, common.ErrConflict)
		s.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("missing poll", func(t *testing.T) {
		s := setupPollServiceTestSuite()
		id := uuid.New()
		s.repo.On("FindByID", ctx, id).Return(nil, common.ErrNotFound.WithDetails("Poll not found."))

		_, err := s.service.PublishPoll(ctx, id, actor, common.RoleClient)

		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestPublishedEvent_BuildsPollRecords(t *testing.T) {
	p := &Poll{BuildingID: uuid.New(), Title: "Paint", Description: "Vote"}
	p.ID = uuid.New()

	ev := PublishedEvent(p, uuid.New())
	rec, err := ev.Build(audience.Recipient{UserID: uuid.New()}, fixedNow)

	require.NoError(t, err)
	assert.Equal(t, notification.ActionPollPublished, rec.ActionToken)
	assert.Equal(t, "/polls/"+p.ID.String(), rec.URL)
	assert.Equal(t, email.TemplatePollPublished, ev.Email.Template)
	assert.Equal(t, "/polls/"+p.ID.String(), ev.Email.Path)
}

func TestPollService_Reorder(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	t.Run("options of a managed poll", func(t *testing.T) {
		s := setupPollServiceTestSuite()
		p := &Poll{BuildingID: uuid.New()}
		p.ID = uuid.New()
		s.repo.On("FindByID", ctx, p.ID).Return(p, nil)
		s.auth.On("AuthorizeManager", ctx, p.BuildingID, actor, common.RoleClient).Return(nil)
		s.options.On("Reorder", ctx, p.ID, ids).Return(nil)

		require.NoError(t, s.service.ReorderOptions(ctx, p.ID, actor, common.RoleClient, ids))
		s.options.AssertExpectations(t)
	})

	t.Run("validation errors pass through", func(t *testing.T) {
		s := setupPollServiceTestSuite()
		buildingID := uuid.New()
		s.auth.On("AuthorizeManager", ctx, buildingID, actor, common.RoleAdmin).Return(nil)
		s.polls.On("Reorder", ctx, buildingID, ids).Return(common.NewValidationAPIError(map[string]string{"ids": "bad"}))

		err := s.service.ReorderPolls(ctx, buildingID, actor, common.RoleAdmin, ids)

		apiErr, ok := common.IsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	})

	t.Run("forbidden never reorders", func(t *testing.T) {
		s := setupPollServiceTestSuite()
		buildingID := uuid.New()
		s.auth.On("AuthorizeManager", ctx, buildingID, actor, common.RoleClient).Return(common.ErrForbidden)

		err := s.service.ReorderPolls(ctx, buildingID, actor, common.RoleClient, ids)

		assert.ErrorIs(t, err, common.ErrForbidden)
		s.polls.AssertNotCalled(t, "Reorder", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPollService_ListPollsIncludesDraftsForManagers(t *testing.T) {
	ctx := context.Background()
	buildingID := uuid.New()
	s := setupPollServiceTestSuite()
	s.repo.On("ListByBuilding", ctx, buildingID, true).Return([]Poll{{Title: "a"}, {Title: "b"}}, nil)
	s.repo.On("ListByBuilding", ctx, buildingID, false).Return([]Poll{{Title: "b"}}, nil)

	managed, err := s.service.ListPolls(ctx, buildingID, common.RoleClient)
	require.NoError(t, err)
	assert.Len(t, managed, 2)

	visible, err := s.service.ListPolls(ctx, buildingID, common.RoleTenant)
	require.NoError(t, err)
	assert.Len(t, visible, 1)
}
