package fakeleadrepo

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-edu-portal/leads"
)

var _ leads.Repo = (*FakeLeadRepo)(nil)

type FakeLeadRepo struct {
	leads []*leads.Lead // in insertion order
	lock  sync.RWMutex
}

func NewFakeLeadRepo() leads.Repo {
	return &FakeLeadRepo{}
}

func (lr *FakeLeadRepo) Create(lead *leads.Lead) error {
	lr.lock.Lock()
	defer lr.lock.Unlock()

	lead.ID = uuid.New().String()
	lr.leads = append(lr.leads, lead)
	return nil
}

func (lr *FakeLeadRepo) List(offset, limit int) ([]*leads.Lead, int, error) {
	lr.lock.RLock()
	defer lr.lock.RUnlock()

	total := len(lr.leads)
	page := make([]*leads.Lead, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(page) < limit; i-- {
		page = append(page, lr.leads[i])
	}
	return page, total, nil
}
