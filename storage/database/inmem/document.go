package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/schooldesk/core/document"
)

type documentRepository struct {
	db *documentTables
}

var _ document.Repository = (*documentRepository)(nil) // interface compliance check

func NewDocumentRepository(db *DB) document.Repository {
	return &documentRepository{db: db.document}
}

func copyRequest(r document.FileRequest) document.FileRequest {
	if r.NewDescription != nil {
		desc := *r.NewDescription
		r.NewDescription = &desc
	}
	return r
}

// Categories

func (repo *documentRepository) CreateCategory(_ context.Context, c document.Category) (document.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.categories[c.ID] = &c
	return c, nil
}

func (repo *documentRepository) GetCategory(_ context.Context, id string) (document.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.categories[id]; ok {
		return *c, nil
	}
	return document.Category{}, document.ErrCategoryNotFound
}

func (repo *documentRepository) QueryCategories(_ context.Context) ([]document.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]document.Category, 0, len(repo.db.categories))
	for _, c := range repo.db.categories {
		cats = append(cats, *c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Order != cats[j].Order {
			return cats[i].Order < cats[j].Order
		}
		return cats[i].Name < cats[j].Name
	})
	return cats, nil
}

func (repo *documentRepository) UpdateCategory(_ context.Context, c document.Category) (document.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[c.ID]; !ok {
		return document.Category{}, document.ErrCategoryNotFound
	}
	repo.db.categories[c.ID] = &c
	return c, nil
}

func (repo *documentRepository) DeleteCategory(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return document.ErrCategoryNotFound
	}
	delete(repo.db.categories, id)
	return nil
}

// Sub-categories

func (repo *documentRepository) CreateSubCategory(_ context.Context, sc document.SubCategory) (document.SubCategory, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.subCategories[sc.ID] = &sc
	return sc, nil
}

func (repo *documentRepository) GetSubCategory(_ context.Context, id string) (document.SubCategory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sc, ok := repo.db.subCategories[id]; ok {
		return *sc, nil
	}
	return document.SubCategory{}, document.ErrSubCategoryNotFound
}

func (repo *documentRepository) QuerySubCategories(_ context.Context, categoryID string) ([]document.SubCategory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]document.SubCategory, 0)
	for _, sc := range repo.db.subCategories {
		if categoryID == "" || sc.CategoryID == categoryID {
			subs = append(subs, *sc)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Order != subs[j].Order {
			return subs[i].Order < subs[j].Order
		}
		return subs[i].Name < subs[j].Name
	})
	return subs, nil
}

func (repo *documentRepository) UpdateSubCategory(_ context.Context, sc document.SubCategory) (document.SubCategory, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subCategories[sc.ID]; !ok {
		return document.SubCategory{}, document.ErrSubCategoryNotFound
	}
	repo.db.subCategories[sc.ID] = &sc
	return sc, nil
}

func (repo *documentRepository) DeleteSubCategory(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subCategories[id]; !ok {
		return document.ErrSubCategoryNotFound
	}
	delete(repo.db.subCategories, id)
	return nil
}

// Documents

func (repo *documentRepository) CreateDocument(_ context.Context, d document.Document) (document.Document, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.documents[d.ID] = &d
	return d, nil
}

func (repo *documentRepository) GetDocument(_ context.Context, id string) (document.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if d, ok := repo.db.documents[id]; ok {
		return *d, nil
	}
	return document.Document{}, document.ErrNotFound
}

func matchDocument(d document.Document, filter document.QueryFilter) bool {
	switch {
	case filter.CategoryID != "" && d.CategoryID != filter.CategoryID:
		return false
	case filter.SubCategoryID != "" && d.SubCategoryID != filter.SubCategoryID:
		return false
	case filter.SchoolYearID != "" && d.SchoolYearID != filter.SchoolYearID:
		return false
	case filter.UploadedBy != "" && d.UploadedBy != filter.UploadedBy:
		return false
	case filter.VisibleTo != "" && d.Status != document.StatusApproved && d.UploadedBy != filter.VisibleTo:
		return false
	case filter.Search != "" && !strings.Contains(strings.ToLower(d.Title), strings.ToLower(filter.Search)):
		return false
	}
	if len(filter.Status) > 0 {
		for _, s := range filter.Status {
			if d.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

func (repo *documentRepository) QueryDocuments(_ context.Context, filter document.QueryFilter) ([]document.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	docs := make([]document.Document, 0)
	for _, d := range repo.db.documents {
		if matchDocument(*d, filter) {
			docs = append(docs, *d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (repo *documentRepository) UpdateDocument(_ context.Context, d document.Document) (document.Document, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.documents[d.ID]; !ok {
		return document.Document{}, document.ErrNotFound
	}
	repo.db.documents[d.ID] = &d
	return d, nil
}

func (repo *documentRepository) DeleteDocument(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.documents[id]; !ok {
		return document.ErrNotFound
	}
	delete(repo.db.documents, id)
	return nil
}

// Requests

func (repo *documentRepository) CreateRequest(_ context.Context, r document.FileRequest) (document.FileRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r = copyRequest(r)
	repo.db.requests[r.ID] = &r
	return copyRequest(r), nil
}

func (repo *documentRepository) GetRequest(_ context.Context, id string) (document.FileRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.requests[id]; ok {
		return copyRequest(*r), nil
	}
	return document.FileRequest{}, document.ErrRequestNotFound
}

func (repo *documentRepository) QueryRequests(_ context.Context, filter document.RequestFilter) ([]document.FileRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := make([]document.FileRequest, 0)
	for _, r := range repo.db.requests {
		switch {
		case filter.DocumentID != "" && r.DocumentID != filter.DocumentID:
		case filter.Status != "" && r.Status != filter.Status:
		case filter.RequestedBy != "" && r.RequestedBy != filter.RequestedBy:
		default:
			reqs = append(reqs, copyRequest(*r))
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
	return reqs, nil
}

func (repo *documentRepository) UpdateRequest(_ context.Context, r document.FileRequest) (document.FileRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.requests[r.ID]; !ok {
		return document.FileRequest{}, document.ErrRequestNotFound
	}
	r = copyRequest(r)
	repo.db.requests[r.ID] = &r
	return copyRequest(r), nil
}
