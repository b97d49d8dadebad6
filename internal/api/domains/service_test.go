package domains

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"go.uber.org/zap"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/models"
)

type fakeDomainRepo struct {
	mu      sync.Mutex
	nextID  uint
	domains []*models.Domain

	// dropInternalsOnCreate removes the project's internal domains right
	// before the next CreateExternal runs its in-transaction checks,
	// simulating a concurrent removal after the service's pre-check.
	dropInternalsOnCreate bool
}

func newFakeDomainRepo() *fakeDomainRepo {
	return &fakeDomainRepo{nextID: 1}
}

func (r *fakeDomainRepo) Get(ctx context.Context, id uint) (*models.Domain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.domains {
		if d.ID == id {
			copied := *d
			return &copied, nil
		}
	}
	return nil, commonerrors.NotFoundErr("domain", strconv.Itoa(int(id)))
}

func (r *fakeDomainRepo) ListByProject(ctx context.Context, projectID uint) ([]*models.Domain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Domain
	for _, d := range r.domains {
		if d.ProjectID == projectID {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeDomainRepo) CountExternal(ctx context.Context, projectID uint, hostname string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countExternalLocked(projectID, hostname), nil
}

func (r *fakeDomainRepo) countExternalLocked(projectID uint, hostname string) int64 {
	var n int64
	for _, d := range r.domains {
		if d.ProjectID == projectID && d.Kind == models.DomainKindExternal && d.Hostname == hostname {
			n++
		}
	}
	return n
}

func (r *fakeDomainRepo) CreateExternal(ctx context.Context, d *models.Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dropInternalsOnCreate {
		r.dropInternalsOnCreate = false
		kept := r.domains[:0]
		for _, existing := range r.domains {
			if existing.ProjectID == d.ProjectID && existing.Kind == models.DomainKindInternal {
				continue
			}
			kept = append(kept, existing)
		}
		r.domains = kept
	}
	if r.countExternalLocked(d.ProjectID, d.Hostname) > 0 {
		return commonerrors.ConflictErr("external domain", d.Hostname)
	}
	if !r.internalExistsLocked(d.ProjectID, d.Port) {
		return commonerrors.NotFoundErr("internal domain for port", strconv.Itoa(d.Port))
	}
	d.ID = r.nextID
	r.nextID++
	copied := *d
	r.domains = append(r.domains, &copied)
	return nil
}

func (r *fakeDomainRepo) internalExistsLocked(projectID uint, port int) bool {
	for _, d := range r.domains {
		if d.ProjectID == projectID && d.Kind == models.DomainKindInternal && d.Port == port {
			return true
		}
	}
	return false
}

func (r *fakeDomainRepo) CreateInternal(ctx context.Context, d *models.Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.domains {
		if existing.ProjectID == d.ProjectID && existing.Kind == models.DomainKindInternal &&
			existing.ServiceName == d.ServiceName && existing.Port == d.Port {
			return commonerrors.ConflictErr("internal domain", d.Hostname)
		}
	}
	d.ID = r.nextID
	r.nextID++
	copied := *d
	r.domains = append(r.domains, &copied)
	return nil
}

func (r *fakeDomainRepo) FindInternalByPort(ctx context.Context, projectID uint, port int) (*models.Domain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.domains {
		if d.ProjectID == projectID && d.Kind == models.DomainKindInternal && d.Port == port {
			copied := *d
			return &copied, nil
		}
	}
	return nil, commonerrors.NotFoundErr("internal domain on port", strconv.Itoa(port))
}

func (r *fakeDomainRepo) SetPrimary(ctx context.Context, projectID, domainID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	for _, d := range r.domains {
		if d.ProjectID == projectID && d.ID == domainID {
			found = true
		}
	}
	if !found {
		return commonerrors.NotFoundErr("domain", strconv.Itoa(int(domainID)))
	}
	for _, d := range r.domains {
		if d.ProjectID == projectID {
			d.IsPrimary = d.ID == domainID
		}
	}
	return nil
}

func (r *fakeDomainRepo) SetVerified(ctx context.Context, domainID uint, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.domains {
		if d.ID == domainID {
			if d.Kind != models.DomainKindExternal {
				return commonerrors.NotFoundErr("external domain", strconv.Itoa(int(domainID)))
			}
			d.Verified = verified
			return nil
		}
	}
	return commonerrors.NotFoundErr("domain", strconv.Itoa(int(domainID)))
}

func mustInternal(t *testing.T, svc DomainService, projectID uint, service string, port int) *models.Domain {
	t.Helper()
	d, err := svc.CreateInternal(context.Background(), CreateInternalRequest{
		ProjectID:   projectID,
		ServiceName: service,
		Port:        port,
	})
	if err != nil {
		t.Fatalf("create internal failed: %v", err)
	}
	return d
}

func TestInternalHostnameGeneration(t *testing.T) {
	repo := newFakeDomainRepo()
	svc := NewDomainService(repo, zap.NewNop())

	d := mustInternal(t, svc, 7, "web", 8080)
	want := "web-8080.project-7.svc.fleet.internal"
	if d.Hostname != want {
		t.Fatalf("generated hostname %q, want %q", d.Hostname, want)
	}
	if !d.Internal() {
		t.Fatal("expected an internal domain")
	}
}

func TestDuplicateServiceInstanceRejected(t *testing.T) {
	repo := newFakeDomainRepo()
	svc := NewDomainService(repo, zap.NewNop())

	mustInternal(t, svc, 7, "web", 8080)
	_, err := svc.CreateInternal(context.Background(), CreateInternalRequest{
		ProjectID: 7, ServiceName: "web", Port: 8080,
	})
	var conflict commonerrors.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestCreateExternalRequiresRoutableParent(t *testing.T) {
	repo := newFakeDomainRepo()
	svc := NewDomainService(repo, zap.NewNop())

	_, err := svc.CreateExternal(context.Background(), CreateExternalRequest{
		ProjectID: 7, Hostname: "blog.example.com", Port: 8080,
	})
	var notFound commonerrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError for missing internal domain, got %v", err)
	}

	mustInternal(t, svc, 7, "web", 8080)
	d, err := svc.CreateExternal(context.Background(), CreateExternalRequest{
		ProjectID: 7, Hostname: "  Blog.Example.COM ", Port: 8080,
	})
	if err != nil {
		t.Fatalf("create external failed: %v", err)
	}
	if d.Hostname != "blog.example.com" {
		t.Fatalf("hostname not normalized: %q", d.Hostname)
	}
}

func TestCreateExternalParentRemovedMidCreate(t *testing.T) {
	repo := newFakeDomainRepo()
	svc := NewDomainService(repo, zap.NewNop())

	mustInternal(t, svc, 7, "web", 8080)
	// the pre-check sees the internal domain, but it is gone by the time
	// the insert transaction re-checks
	repo.dropInternalsOnCreate = true

	_, err := svc.CreateExternal(context.Background(), CreateExternalRequest{
		ProjectID: 7, Hostname: "blog.example.com", Port: 8080,
	})
	var notFound commonerrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError from the in-transaction re-check, got %v", err)
	}
	if n, _ := repo.CountExternal(context.Background(), 7, "blog.example.com"); n != 0 {
		t.Fatal("orphaned external domain was created anyway")
	}
}

func TestExternalHostnameUniquePerProject(t *testing.T) {
	repo := newFakeDomainRepo()
	svc := NewDomainService(repo, zap.NewNop())
	ctx := context.Background()

	mustInternal(t, svc, 7, "web", 8080)
	mustInternal(t, svc, 8, "web", 8080)

	if _, err := svc.CreateExternal(ctx, CreateExternalRequest{
		ProjectID: 7, Hostname: "blog.example.com", Port: 8080,
	}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	unique, err := svc.IsUniqueForProject(ctx, 7, "BLOG.example.com")
	if err != nil {
		t.Fatalf("uniqueness check failed: %v", err)
	}
	if unique {
		t.Fatal("hostname should no longer be unique within the project")
	}

	_, err = svc.CreateExternal(ctx, CreateExternalRequest{
		ProjectID: 7, Hostname: "blog.example.com", Port: 8080,
	})
	var conflict commonerrors.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	// same hostname in another project is fine
	if _, err := svc.CreateExternal(ctx, CreateExternalRequest{
		ProjectID: 8, Hostname: "blog.example.com", Port: 8080,
	}); err != nil {
		t.Fatalf("cross-project create failed: %v", err)
	}
}

func TestSetPrimaryKeepsExactlyOne(t *testing.T) {
	repo := newFakeDomainRepo()
	svc := NewDomainService(repo, zap.NewNop())
	ctx := context.Background()

	internal := mustInternal(t, svc, 7, "web", 8080)
	first, err := svc.CreateExternal(ctx, CreateExternalRequest{ProjectID: 7, Hostname: "a.example.com", Port: 8080})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.CreateExternal(ctx, CreateExternalRequest{ProjectID: 7, Hostname: "b.example.com", Port: 8080})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.SetPrimary(ctx, 7, first.ID); err != nil {
		t.Fatalf("set primary failed: %v", err)
	}

	// concurrent flips still leave exactly one primary
	var wg sync.WaitGroup
	for _, id := range []uint{first.ID, second.ID, internal.ID} {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			if err := svc.SetPrimary(ctx, 7, id); err != nil {
				t.Errorf("set primary %d failed: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	all, err := svc.ListByProject(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	primaries := 0
	for _, d := range all {
		if d.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary domain, got %d", primaries)
	}
}

func TestSetPrimaryUnknownDomain(t *testing.T) {
	repo := newFakeDomainRepo()
	svc := NewDomainService(repo, zap.NewNop())

	err := svc.SetPrimary(context.Background(), 7, 999)
	var notFound commonerrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestResolveParent(t *testing.T) {
	repo := newFakeDomainRepo()
	svc := NewDomainService(repo, zap.NewNop())
	ctx := context.Background()

	internal := mustInternal(t, svc, 7, "web", 8080)
	external, err := svc.CreateExternal(ctx, CreateExternalRequest{ProjectID: 7, Hostname: "blog.example.com", Port: 8080})
	if err != nil {
		t.Fatal(err)
	}

	parent, err := svc.ResolveParent(ctx, external.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if parent.ID != internal.ID {
		t.Fatalf("resolved to domain %d, want %d", parent.ID, internal.ID)
	}

	// internal domains resolve to themselves, so resolution is idempotent
	again, err := svc.ResolveParent(ctx, parent.ID)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if again.ID != internal.ID {
		t.Fatalf("resolution is not idempotent: got %d", again.ID)
	}
}

func TestResolveParentOrphanedExternal(t *testing.T) {
	repo := newFakeDomainRepo()
	svc := NewDomainService(repo, zap.NewNop())

	// seed an orphan behind the repository's back; no write path creates one
	orphan := &models.Domain{ProjectID: 7, Kind: models.DomainKindExternal, Hostname: "lost.example.com", Port: 9999}
	orphan.ID = repo.nextID
	repo.nextID++
	repo.domains = append(repo.domains, orphan)

	_, err := svc.ResolveParent(context.Background(), orphan.ID)
	var notFound commonerrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRecordVerification(t *testing.T) {
	repo := newFakeDomainRepo()
	svc := NewDomainService(repo, zap.NewNop())
	ctx := context.Background()

	mustInternal(t, svc, 7, "web", 8080)
	external, err := svc.CreateExternal(ctx, CreateExternalRequest{ProjectID: 7, Hostname: "blog.example.com", Port: 8080})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.RecordVerification(ctx, external.ID, true); err != nil {
		t.Fatalf("verification failed: %v", err)
	}
	got, err := repo.Get(ctx, external.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Verified {
		t.Fatal("expected domain to be verified")
	}
}
