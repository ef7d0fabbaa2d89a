package projects_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creators-notebook/backend/internal/models"
	"github.com/creators-notebook/backend/internal/projects"
	"github.com/creators-notebook/backend/pkg/queue"
)

// fakeDB is an in-memory implementation of the project, membership,
// character and user stores, guarded by one mutex so the transactional
// contract (project + CREATOR membership appear and disappear together)
// holds under concurrent access.
type fakeDB struct {
	mu          sync.Mutex
	projects    map[uuid.UUID]models.Project
	memberships map[string]models.Membership
	characters  map[uuid.UUID][]models.Character
	users       map[string]models.User
	nextBridge  int64
	failCreate  bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		projects:    make(map[uuid.UUID]models.Project),
		memberships: make(map[string]models.Membership),
		characters:  make(map[uuid.UUID][]models.Character),
		users:       make(map[string]models.User),
	}
}

func bridgeKey(projectUUID uuid.UUID, userNo int64) string {
	return fmt.Sprintf("%s|%d", projectUUID, userNo)
}

func (db *fakeDB) GetByUUID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p, ok := db.projects[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (db *fakeDB) CreateWithCreator(_ context.Context, p *models.Project, ownerNo int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.failCreate {
		return 0, errors.New("insert failed")
	}
	p.UUID = uuid.New()
	db.projects[p.UUID] = *p
	db.nextBridge++
	db.memberships[bridgeKey(p.UUID, ownerNo)] = models.Membership{
		No:          db.nextBridge,
		ProjectUUID: p.UUID,
		UserNo:      ownerNo,
		Authority:   models.RoleCreator,
	}
	return db.nextBridge, nil
}

func (db *fakeDB) DeleteCascade(_ context.Context, id uuid.UUID) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.projects[id]; !ok {
		return false, nil
	}
	delete(db.projects, id)
	for k, m := range db.memberships {
		if m.ProjectUUID == id {
			delete(db.memberships, k)
		}
	}
	delete(db.characters, id)
	return true, nil
}

func (db *fakeDB) UpdateTitle(_ context.Context, id uuid.UUID, title string, editDate time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.projects[id]
	if !ok {
		return false, nil
	}
	p.Title = title
	p.EditDate = editDate
	db.projects[id] = p
	return true, nil
}

func (db *fakeDB) UpdateDescription(_ context.Context, id uuid.UUID, description string, editDate time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.projects[id]
	if !ok {
		return false, nil
	}
	p.Description = description
	p.EditDate = editDate
	db.projects[id] = p
	return true, nil
}

func (db *fakeDB) UpdateVisibility(_ context.Context, id uuid.UUID, openToPublic bool, editDate time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.projects[id]
	if !ok {
		return false, nil
	}
	p.OpenToPublic = openToPublic
	p.EditDate = editDate
	db.projects[id] = p
	return true, nil
}

func (db *fakeDB) Find(_ context.Context, projectUUID uuid.UUID, userNo int64) (*models.Membership, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if m, ok := db.memberships[bridgeKey(projectUUID, userNo)]; ok {
		cp := m
		return &cp, nil
	}
	return nil, nil
}

func (db *fakeDB) ListForUser(_ context.Context, userNo int64) ([]models.ProjectWithRole, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var list []models.ProjectWithRole
	for _, m := range db.memberships {
		if m.UserNo != userNo {
			continue
		}
		p, ok := db.projects[m.ProjectUUID]
		if !ok {
			continue
		}
		list = append(list, models.ProjectWithRole{Project: p, Authority: m.Authority, BridgeNo: m.No})
	}
	return list, nil
}

func (db *fakeDB) Create(_ context.Context, projectUUID uuid.UUID, userNo int64, role models.Role) (*models.Membership, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := bridgeKey(projectUUID, userNo)
	if _, ok := db.memberships[key]; ok {
		return nil, projects.ErrMembershipExists
	}
	db.nextBridge++
	m := models.Membership{No: db.nextBridge, ProjectUUID: projectUUID, UserNo: userNo, Authority: role}
	db.memberships[key] = m
	return &m, nil
}

func (db *fakeDB) Delete(_ context.Context, projectUUID uuid.UUID, userNo int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := bridgeKey(projectUUID, userNo)
	if _, ok := db.memberships[key]; !ok {
		return false, nil
	}
	delete(db.memberships, key)
	return true, nil
}

func (db *fakeDB) DeleteForProject(_ context.Context, projectUUID uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for k, m := range db.memberships {
		if m.ProjectUUID == projectUUID {
			delete(db.memberships, k)
		}
	}
	return nil
}

func (db *fakeDB) ListForProject(_ context.Context, projectUUID uuid.UUID) ([]models.Member, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var list []models.Member
	for _, m := range db.memberships {
		if m.ProjectUUID == projectUUID {
			list = append(list, models.Member{No: m.No, UserNo: m.UserNo, Authority: m.Authority})
		}
	}
	return list, nil
}

func (db *fakeDB) ListByProject(_ context.Context, projectUUID uuid.UUID) ([]models.Character, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]models.Character(nil), db.characters[projectUUID]...), nil
}

func (db *fakeDB) GetByEmail(_ context.Context, email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u, ok := db.users[email]; ok {
		cp := u
		return &cp, nil
	}
	return nil, nil
}

// membershipCount reports how many memberships exist for a project.
func (db *fakeDB) membershipCount(projectUUID uuid.UUID) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, m := range db.memberships {
		if m.ProjectUUID == projectUUID {
			n++
		}
	}
	return n
}

type fakeBlobs struct {
	mu       sync.Mutex
	failSave bool
	saved    []string
	deleted  []string
}

func (b *fakeBlobs) SaveImage(_ context.Context, key, _ string, _ io.Reader, _ int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSave {
		return "", errors.New("bucket unavailable")
	}
	b.saved = append(b.saved, key)
	return "https://images.example.com/" + key, nil
}

func (b *fakeBlobs) DeleteImage(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, key)
	return nil
}

type fakeCleanup struct {
	mu       sync.Mutex
	fail     bool
	enqueued []queue.ImageDeletePayload
}

func (q *fakeCleanup) EnqueueImageDelete(_ context.Context, payload queue.ImageDeletePayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail {
		return errors.New("redis down")
	}
	q.enqueued = append(q.enqueued, payload)
	return nil
}

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testTime }

func newTestService(db *fakeDB, blobs *fakeBlobs, cleanup *fakeCleanup) *projects.Service {
	var bs projects.BlobStore
	var cq projects.CleanupQueue
	if blobs != nil {
		bs = blobs
	}
	if cleanup != nil {
		cq = cleanup
	}
	return projects.NewService(db, db, db, db, bs, cq, fixedClock, nil)
}

func Test_CreateProject_CreatorMembershipIsAtomic(t *testing.T) {
	db := newFakeDB()
	svc := newTestService(db, nil, nil)

	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Draft A"}, nil)
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, models.RoleCreator, created.Authority)
	assert.False(t, created.OpenToPublic, "new projects default to private")
	assert.Equal(t, testTime, created.CreateDate)
	assert.Equal(t, testTime, created.EditDate)

	m, err := db.Find(context.Background(), created.UUID, 1)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.RoleCreator, m.Authority)
	assert.Equal(t, 1, db.membershipCount(created.UUID))
}

func Test_CreateProject_ImageSaveFailureAbortsEverything(t *testing.T) {
	db := newFakeDB()
	blobs := &fakeBlobs{failSave: true}
	svc := newTestService(db, blobs, nil)

	image := &projects.ImageUpload{Filename: "cover.png", ContentType: "image/png", Size: 4, Body: strings.NewReader("abcd")}
	_, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Draft A"}, image)
	require.ErrorIs(t, err, projects.ErrStorage)

	assert.Empty(t, db.projects)
	assert.Empty(t, db.memberships)
}

func Test_CreateProject_StoreFailureCleansUpOrphanImage(t *testing.T) {
	db := newFakeDB()
	db.failCreate = true
	blobs := &fakeBlobs{}
	svc := newTestService(db, blobs, nil)

	image := &projects.ImageUpload{Filename: "cover.png", ContentType: "image/png", Size: 4, Body: strings.NewReader("abcd")}
	_, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Draft A"}, image)
	require.Error(t, err)
	require.Len(t, blobs.saved, 1)
	assert.Equal(t, blobs.saved, blobs.deleted, "orphan image removed after failed insert")
}

func Test_LoadProject_PrivateHiddenFromNonMembers(t *testing.T) {
	db := newFakeDB()
	svc := newTestService(db, nil, nil)

	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Secret"}, nil)
	require.NoError(t, err)

	_, errNonMember := svc.LoadProject(context.Background(), created.UUID, 2)
	_, errAnonymous := svc.LoadProject(context.Background(), created.UUID, projects.AnonymousUser)
	_, errMissing := svc.LoadProject(context.Background(), uuid.New(), 2)

	// Access denied is indistinguishable from a nonexistent project.
	assert.ErrorIs(t, errNonMember, projects.ErrProjectNotFound)
	assert.ErrorIs(t, errAnonymous, projects.ErrProjectNotFound)
	assert.ErrorIs(t, errMissing, projects.ErrProjectNotFound)
	assert.Equal(t, errMissing.Error(), errNonMember.Error())
}

func Test_LoadProject_PublicReadableByAnyone(t *testing.T) {
	db := newFakeDB()
	svc := newTestService(db, nil, nil)

	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Open"}, nil)
	require.NoError(t, err)
	ok, err := svc.SetVisibility(context.Background(), created.UUID, models.RoleCreator, true)
	require.NoError(t, err)
	require.True(t, ok)

	member, err := svc.LoadProject(context.Background(), created.UUID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCreator, member.Authority)

	stranger, err := svc.LoadProject(context.Background(), created.UUID, 2)
	require.NoError(t, err)
	assert.Empty(t, stranger.Authority, "non-member readers carry no role")

	anon, err := svc.LoadProject(context.Background(), created.UUID, projects.AnonymousUser)
	require.NoError(t, err)
	assert.Empty(t, anon.Authority)
	assert.NotNil(t, anon.Characters)
}

func Test_DeleteProject_NonPrivilegedLeavesEverything(t *testing.T) {
	db := newFakeDB()
	svc := newTestService(db, nil, nil)

	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Draft"}, nil)
	require.NoError(t, err)
	_, err = db.Create(context.Background(), created.UUID, 2, models.RoleEditor)
	require.NoError(t, err)
	db.characters[created.UUID] = []models.Character{{Name: "Hero", ProjectUUID: created.UUID}}

	for _, userNo := range []int64{2, 3} { // editor, then non-member
		deleted, err := svc.DeleteProject(context.Background(), created.UUID, userNo)
		require.NoError(t, err)
		assert.False(t, deleted)
	}

	assert.Len(t, db.projects, 1)
	assert.Equal(t, 2, db.membershipCount(created.UUID))
	assert.Len(t, db.characters[created.UUID], 1)
}

func Test_DeleteProject_PrivilegedCascades(t *testing.T) {
	db := newFakeDB()
	blobs := &fakeBlobs{}
	cleanup := &fakeCleanup{}
	svc := newTestService(db, blobs, cleanup)

	image := &projects.ImageUpload{Filename: "cover.jpg", ContentType: "image/jpeg", Size: 4, Body: strings.NewReader("abcd")}
	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Draft"}, image)
	require.NoError(t, err)
	_, err = db.Create(context.Background(), created.UUID, 2, models.RoleAdmin)
	require.NoError(t, err)
	db.characters[created.UUID] = []models.Character{{Name: "Hero"}, {Name: "Villain"}}

	deleted, err := svc.DeleteProject(context.Background(), created.UUID, 2)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = svc.LoadProject(context.Background(), created.UUID, 1)
	assert.ErrorIs(t, err, projects.ErrProjectNotFound)
	assert.Equal(t, 0, db.membershipCount(created.UUID))
	assert.Empty(t, db.characters[created.UUID])

	// The cover image went to the deferred cleanup queue, not inline delete.
	require.Len(t, cleanup.enqueued, 1)
	assert.Equal(t, created.Image, cleanup.enqueued[0].ImageKey)
	assert.Empty(t, blobs.deleted)
}

func Test_DeleteProject_QueueFailureFallsBackToInlineDelete(t *testing.T) {
	db := newFakeDB()
	blobs := &fakeBlobs{}
	cleanup := &fakeCleanup{fail: true}
	svc := newTestService(db, blobs, cleanup)

	image := &projects.ImageUpload{Filename: "cover.jpg", ContentType: "image/jpeg", Size: 4, Body: strings.NewReader("abcd")}
	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Draft"}, image)
	require.NoError(t, err)

	deleted, err := svc.DeleteProject(context.Background(), created.UUID, 1)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{created.Image}, blobs.deleted)
}

func Test_DeleteProject_ConcurrentDoubleDelete(t *testing.T) {
	db := newFakeDB()
	svc := newTestService(db, nil, nil)

	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Draft"}, nil)
	require.NoError(t, err)
	_, err = db.Create(context.Background(), created.UUID, 2, models.RoleAdmin)
	require.NoError(t, err)

	results := make(chan bool, 2)
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, userNo := range []int64{1, 2} {
		wg.Add(1)
		go func(no int64) {
			defer wg.Done()
			deleted, err := svc.DeleteProject(context.Background(), created.UUID, no)
			results <- deleted
			errs <- err
		}(userNo)
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	trueCount := 0
	for deleted := range results {
		if deleted {
			trueCount++
		}
	}
	assert.Equal(t, 1, trueCount, "exactly one caller wins the delete")
	assert.Empty(t, db.projects)
}

func Test_RenameProject(t *testing.T) {
	db := newFakeDB()
	svc := newTestService(db, nil, nil)

	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Old"}, nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		id    uuid.UUID
		role  models.Role
		title string
		want  bool
	}{
		{name: "creator_renames", id: created.UUID, role: models.RoleCreator, title: "New", want: true},
		{name: "admin_renames", id: created.UUID, role: models.RoleAdmin, title: "Newer", want: true},
		{name: "same_title_still_updates", id: created.UUID, role: models.RoleCreator, title: "Newer", want: true},
		{name: "editor_denied", id: created.UUID, role: models.RoleEditor, title: "Nope", want: false},
		{name: "no_role_denied", id: created.UUID, role: "", title: "Nope", want: false},
		{name: "vanished_project", id: uuid.New(), role: models.RoleCreator, title: "Ghost", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := svc.RenameProject(context.Background(), tc.id, tc.role, tc.title)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}

	p, err := db.GetByUUID(context.Background(), created.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Newer", p.Title, "denied renames leave the title alone")
}

func Test_RedescribeProject_DeniedForNonPrivileged(t *testing.T) {
	db := newFakeDB()
	svc := newTestService(db, nil, nil)

	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "T", Description: "before"}, nil)
	require.NoError(t, err)

	ok, err := svc.RedescribeProject(context.Background(), created.UUID, models.RoleViewer, "after")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.RedescribeProject(context.Background(), created.UUID, models.RoleAdmin, "after")
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := db.GetByUUID(context.Background(), created.UUID)
	require.NoError(t, err)
	assert.Equal(t, "after", p.Description)
}

func Test_InviteAndRemoveMembers(t *testing.T) {
	db := newFakeDB()
	db.users["friend@example.com"] = models.User{No: 2, Email: "friend@example.com"}
	svc := newTestService(db, nil, nil)

	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "Shared"}, nil)
	require.NoError(t, err)

	_, err = svc.InviteMember(context.Background(), created.UUID, models.RoleEditor, "friend@example.com", models.RoleEditor)
	assert.ErrorIs(t, err, projects.ErrNotAuthorized)

	_, err = svc.InviteMember(context.Background(), created.UUID, models.RoleCreator, "nobody@example.com", models.RoleEditor)
	assert.ErrorIs(t, err, projects.ErrUserNotFound)

	_, err = svc.InviteMember(context.Background(), created.UUID, models.RoleCreator, "friend@example.com", models.RoleCreator)
	assert.Error(t, err, "a second CREATOR cannot be minted")

	m, err := svc.InviteMember(context.Background(), created.UUID, models.RoleCreator, "friend@example.com", models.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, m.Authority)

	_, err = svc.InviteMember(context.Background(), created.UUID, models.RoleCreator, "friend@example.com", models.RoleViewer)
	assert.ErrorIs(t, err, projects.ErrMembershipExists)

	// The CREATOR membership cannot be removed, so the project never ends
	// up with zero memberships.
	removed, err := svc.RemoveMember(context.Background(), created.UUID, models.RoleAdmin, 1)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = svc.RemoveMember(context.Background(), created.UUID, models.RoleCreator, 2)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 1, db.membershipCount(created.UUID))
}

func Test_ListMembers_NonMemberGetsNotFound(t *testing.T) {
	db := newFakeDB()
	svc := newTestService(db, nil, nil)

	created, err := svc.CreateProject(context.Background(), 1, projects.CreateProjectParams{Title: "P"}, nil)
	require.NoError(t, err)

	_, err = svc.ListMembers(context.Background(), created.UUID, 2)
	assert.ErrorIs(t, err, projects.ErrProjectNotFound)

	members, err := svc.ListMembers(context.Background(), created.UUID, 1)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func Test_PublishScenario(t *testing.T) {
	db := newFakeDB()
	svc := newTestService(db, nil, nil)
	ctx := context.Background()

	// User 1 creates a private draft.
	created, err := svc.CreateProject(ctx, 1, projects.CreateProjectParams{Title: "Draft A"}, nil)
	require.NoError(t, err)

	list, err := svc.LoadAccessibleProjects(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.RoleCreator, list[0].Authority)
	assert.Equal(t, "Draft A", list[0].Title)

	// User 2 cannot even learn the draft exists.
	_, err = svc.LoadProject(ctx, created.UUID, 2)
	assert.ErrorIs(t, err, projects.ErrProjectNotFound)

	// User 1 publishes.
	ok, err := svc.SetVisibility(ctx, created.UUID, models.RoleCreator, true)
	require.NoError(t, err)
	require.True(t, ok)

	// Now user 2 reads it, with no role attached.
	detail, err := svc.LoadProject(ctx, created.UUID, 2)
	require.NoError(t, err)
	assert.Empty(t, detail.Authority)
	assert.Equal(t, "Draft A", detail.Title)

	// Published projects are still only listed for members.
	list2, err := svc.LoadAccessibleProjects(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, list2)

	// Unpublish hides it again.
	ok, err = svc.SetVisibility(ctx, created.UUID, models.RoleCreator, false)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = svc.LoadProject(ctx, created.UUID, 2)
	assert.ErrorIs(t, err, projects.ErrProjectNotFound)
}
