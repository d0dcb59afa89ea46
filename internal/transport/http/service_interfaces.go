package http

import (
	"context"
	"io"

	"equiviz/internal/domain"
	"equiviz/internal/services"
)

// DatasetServiceInterface is the surface of the dataset service the
// handlers use.
type DatasetServiceInterface interface {
	Upload(ctx context.Context, identity domain.Identity, fileName string, file io.Reader) (*services.UploadResult, error)
	List(ctx context.Context, identity domain.Identity) ([]domain.DatasetMeta, error)
	Detail(ctx context.Context, identity domain.Identity, id int64) (*domain.Dataset, error)
	Summary(ctx context.Context, identity domain.Identity, id int64) (*domain.Summary, error)
	Delete(ctx context.Context, identity domain.Identity, id int64) error
	RenderPDF(ctx context.Context, identity domain.Identity, id int64) (*services.ExportResult, error)
	RenderXLSX(ctx context.Context, identity domain.Identity, id int64) (*services.ExportResult, error)
}

// AuthServiceInterface is the surface of the auth service the handlers
// use.
type AuthServiceInterface interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
}
