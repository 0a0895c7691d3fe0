package fakeprogramrepo

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-edu-portal/internal/errors"
	"github.com/jrsteele09/go-edu-portal/programs"
)

var _ programs.Repo = (*FakeProgramRepo)(nil)

type FakeProgramRepo struct {
	programs map[string]*programs.Program // keyed by slug
	lock     sync.RWMutex
}

func NewFakeProgramRepo() programs.Repo {
	return &FakeProgramRepo{
		programs: make(map[string]*programs.Program),
	}
}

func (pr *FakeProgramRepo) Upsert(program *programs.Program) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()

	if program.Slug == "" {
		program.Slug = programs.Slugify(program.Title)
	}
	if program.Slug == "" {
		return errors.Wrapf(errors.ErrValidation, "program %q has no slug", program.Title)
	}
	if program.ID == "" {
		program.ID = uuid.New().String()
	}
	pr.programs[program.Slug] = program
	return nil
}

func (pr *FakeProgramRepo) GetBySlug(slug string) (*programs.Program, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()

	p, ok := pr.programs[slug]
	if !ok || !p.Published {
		return nil, errors.ErrNotFound
	}
	return p, nil
}

// List returns matching programs ordered by title.
func (pr *FakeProgramRepo) List(filter programs.Filter, offset, limit int) ([]*programs.Program, int, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()

	matched := make([]*programs.Program, 0, len(pr.programs))
	for _, p := range pr.programs {
		if filter.Matches(p) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Title < matched[j].Title
	})

	total := len(matched)
	if offset >= total {
		return []*programs.Program{}, total, nil
	}
	return matched[offset:min(offset+limit, total)], total, nil
}
