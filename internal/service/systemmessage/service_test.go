package systemmessage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeMessageRepo keeps version families in memory.
type fakeMessageRepo struct {
	rows   map[int64]*models.SystemMessage
	nextID int64
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{rows: map[int64]*models.SystemMessage{}}
}

func (f *fakeMessageRepo) Create(ctx context.Context, msg *models.SystemMessage) error {
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = time.Now().UTC()
	msg.ModifiedAt = msg.CreatedAt
	stored := *msg
	f.rows[msg.ID] = &stored
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id int64) (*models.SystemMessage, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeMessageRepo) GetByIDs(ctx context.Context, ids []int64) ([]models.SystemMessage, error) {
	out := []models.SystemMessage{}
	for _, id := range ids {
		if row, ok := f.rows[id]; ok {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) List(ctx context.Context, profileID int64, includeArchived bool) ([]models.SystemMessage, error) {
	out := []models.SystemMessage{}
	for _, row := range f.rows {
		if row.ProfileID != profileID {
			continue
		}
		if row.IsArchived && !includeArchived {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (f *fakeMessageRepo) GetActiveByType(ctx context.Context, profileID int64, t models.SystemMessageType) ([]models.SystemMessage, error) {
	out := []models.SystemMessage{}
	for _, row := range f.rows {
		if row.ProfileID == profileID && row.Type == t && row.IsActive && !row.IsArchived {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) GetAttachedContextFiles(ctx context.Context, profileID, personaID int64) ([]models.SystemMessage, error) {
	return nil, nil
}

func (f *fakeMessageRepo) GetPerceptionContextFiles(ctx context.Context, profileID, perceptionID int64) ([]models.SystemMessage, error) {
	return nil, nil
}

func (f *fakeMessageRepo) GetUserProfileMessage(ctx context.Context, profileID int64) (*models.SystemMessage, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeMessageRepo) GetVersions(ctx context.Context, rootID int64) ([]models.SystemMessage, error) {
	out := []models.SystemMessage{}
	for _, row := range f.rows {
		if row.RootID() == rootID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (f *fakeMessageRepo) MaxVersion(ctx context.Context, rootID int64) (int, error) {
	max := 0
	for _, row := range f.rows {
		if row.RootID() == rootID && row.Version > max {
			max = row.Version
		}
	}
	return max, nil
}

func (f *fakeMessageRepo) DeactivateFamily(ctx context.Context, rootID int64) error {
	for _, row := range f.rows {
		if row.RootID() == rootID {
			row.IsActive = false
		}
	}
	return nil
}

func (f *fakeMessageRepo) SetActive(ctx context.Context, id int64) error {
	row, ok := f.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.IsActive = true
	return nil
}

func (f *fakeMessageRepo) SetArchived(ctx context.Context, id int64, archived bool) error {
	row, ok := f.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.IsArchived = archived
	return nil
}

func (f *fakeMessageRepo) DeleteFamily(ctx context.Context, rootID int64) error {
	for id, row := range f.rows {
		if row.RootID() == rootID {
			delete(f.rows, id)
		}
	}
	return nil
}

func (f *fakeMessageRepo) CopyProfile(ctx context.Context, fromProfileID, toProfileID int64) (int64, error) {
	return 0, nil
}

func (f *fakeMessageRepo) activeIDs(rootID int64) []int64 {
	ids := []int64{}
	for id, row := range f.rows {
		if row.RootID() == rootID && row.IsActive {
			ids = append(ids, id)
		}
	}
	return ids
}

type fakeTx struct{}

func (fakeTx) ExecTx(ctx context.Context, fn repositories.TxFn) error { return fn(ctx) }

func newTestService() (*Service, *fakeMessageRepo) {
	repo := newFakeMessageRepo()
	return NewService(repo, fakeTx{}, testLogger()), repo
}

func TestCreate_StartsFamilyAtVersionOne(t *testing.T) {
	svc, _ := newTestService()

	msg, err := svc.Create(context.Background(), &CreateRequest{
		ProfileID: 1,
		Name:      "Anna",
		Content:   "You are Anna.",
		Type:      models.SystemMessagePersona,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if msg.Version != 1 {
		t.Errorf("version = %d, want 1", msg.Version)
	}
	if msg.ParentID != nil {
		t.Error("family root must not carry a parent id")
	}
	if msg.RootID() != msg.ID {
		t.Errorf("root id = %d, want own id %d", msg.RootID(), msg.ID)
	}
}

func TestCreate_RejectsUnknownType(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), &CreateRequest{
		ProfileID: 1,
		Name:      "odd",
		Content:   "text",
		Type:      models.SystemMessageType("Banner"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// TestUpdate_InsertsNewActiveVersion pins the edit protocol: the original row
// survives untouched, the edit lands as version 2 parented to the root, and
// the active flag moves in the same step.
func TestUpdate_InsertsNewActiveVersion(t *testing.T) {
	svc, repo := newTestService()

	root, err := svc.Create(context.Background(), &CreateRequest{
		ProfileID: 1,
		Name:      "Anna",
		Content:   "v1 content",
		Type:      models.SystemMessagePersona,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	content := "v2 content"
	next, err := svc.Update(context.Background(), root.ID, &UpdateRequest{Content: &content})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if next.ID == root.ID {
		t.Fatal("update must insert a new row")
	}
	if next.Version != 2 {
		t.Errorf("version = %d, want 2", next.Version)
	}
	if next.ParentID == nil || *next.ParentID != root.ID {
		t.Errorf("parent id = %v, want root %d", next.ParentID, root.ID)
	}
	if next.Content != "v2 content" {
		t.Errorf("content = %q", next.Content)
	}
	if next.Name != "Anna" {
		t.Errorf("unedited fields should carry over, name = %q", next.Name)
	}

	original, _ := repo.GetByID(context.Background(), root.ID)
	if original.Content != "v1 content" {
		t.Errorf("original content mutated to %q", original.Content)
	}
	if original.IsActive {
		t.Error("original version should be deactivated")
	}

	if active := repo.activeIDs(root.ID); len(active) != 1 || active[0] != next.ID {
		t.Errorf("active rows = %v, want just %d", active, next.ID)
	}
}

// TestUpdate_EditOfOldVersionStillParentsToRoot verifies version chains stay
// flat: editing v2 produces v3 with ParentID=root, not ParentID=v2.
func TestUpdate_EditOfOldVersionStillParentsToRoot(t *testing.T) {
	svc, _ := newTestService()

	root, _ := svc.Create(context.Background(), &CreateRequest{
		ProfileID: 1, Name: "Anna", Content: "v1", Type: models.SystemMessagePersona,
	})
	content2 := "v2"
	v2, err := svc.Update(context.Background(), root.ID, &UpdateRequest{Content: &content2})
	if err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	content3 := "v3"
	v3, err := svc.Update(context.Background(), v2.ID, &UpdateRequest{Content: &content3})
	if err != nil {
		t.Fatalf("second update failed: %v", err)
	}

	if v3.ParentID == nil || *v3.ParentID != root.ID {
		t.Errorf("v3 parent = %v, want root %d", v3.ParentID, root.ID)
	}
	if v3.Version != 3 {
		t.Errorf("v3 version = %d", v3.Version)
	}
}

func TestSetActiveVersion_FlipsWithinFamily(t *testing.T) {
	svc, repo := newTestService()

	root, _ := svc.Create(context.Background(), &CreateRequest{
		ProfileID: 1, Name: "Anna", Content: "v1", Type: models.SystemMessagePersona, IsActive: true,
	})
	content := "v2"
	v2, _ := svc.Update(context.Background(), root.ID, &UpdateRequest{Content: &content})

	restored, err := svc.SetActiveVersion(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("SetActiveVersion failed: %v", err)
	}
	if !restored.IsActive {
		t.Error("returned message should be active")
	}

	if active := repo.activeIDs(root.ID); len(active) != 1 || active[0] != root.ID {
		t.Errorf("active rows = %v, want just root %d", active, root.ID)
	}
	v2Row, _ := repo.GetByID(context.Background(), v2.ID)
	if v2Row.IsActive {
		t.Error("v2 should be deactivated by the flip")
	}
}

func TestGetVersions_WalksFamilyFromAnyVersion(t *testing.T) {
	svc, _ := newTestService()

	root, _ := svc.Create(context.Background(), &CreateRequest{
		ProfileID: 1, Name: "Anna", Content: "v1", Type: models.SystemMessagePersona,
	})
	content := "v2"
	v2, _ := svc.Update(context.Background(), root.ID, &UpdateRequest{Content: &content})

	versions, err := svc.GetVersions(context.Background(), v2.ID)
	if err != nil {
		t.Fatalf("GetVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions, want 2", len(versions))
	}
	if versions[0].Version != 1 || versions[1].Version != 2 {
		t.Errorf("versions out of order: %d, %d", versions[0].Version, versions[1].Version)
	}
}

func TestDelete_RemovesWholeFamily(t *testing.T) {
	svc, repo := newTestService()

	root, _ := svc.Create(context.Background(), &CreateRequest{
		ProfileID: 1, Name: "Anna", Content: "v1", Type: models.SystemMessagePersona,
	})
	content := "v2"
	v2, _ := svc.Update(context.Background(), root.ID, &UpdateRequest{Content: &content})

	if err := svc.Delete(context.Background(), v2.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	for _, id := range []int64{root.ID, v2.ID} {
		if _, err := repo.GetByID(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("row %d should be gone", id)
		}
	}
}
