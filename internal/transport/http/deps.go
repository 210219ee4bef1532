// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"

	"github.com/tryoffset/registry/internal/domain"
)

type RecordManager interface {
	Create(ctx context.Context, params domain.CreateRecordParams) (domain.Record, error)
	Get(ctx context.Context, id string) (domain.Record, error)
	Retire(ctx context.Context, id string) error
}

type HealthChecker interface {
	Check(ctx context.Context) error
}
