package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

type pricelistRepo struct {
	v *view
}

func (r *pricelistRepo) CloseItemDetails(_ context.Context, itemID int64, at time.Time) error {
	return r.close(entities.KindItem, itemID, at)
}

func (r *pricelistRepo) CloseServiceDetails(_ context.Context, serviceID int64, at time.Time) error {
	return r.close(entities.KindService, serviceID, at)
}

func (r *pricelistRepo) close(kind entities.EntryKind, id int64, at time.Time) error {
	return r.v.write(func(s *state) error {
		for _, d := range s.details {
			if d.Kind == kind && d.EntryID == id && d.ValidityTo == nil {
				closed := at
				d.ValidityTo = &closed
			}
		}
		return nil
	})
}

type mutationLogRepo struct {
	v *view
}

func (r *mutationLogRepo) Record(_ context.Context, kind entities.EntryKind, entryID int64, clientMutationID string) error {
	return r.v.write(func(s *state) error {
		s.mutations = append(s.mutations, mutationRecord{Kind: kind, EntryID: entryID, ClientMutationID: clientMutationID})
		return nil
	})
}

type diagnosisRepo struct {
	v *view
}

func (r *diagnosisRepo) List(_ context.Context, filter entities.DiagnosisFilter) ([]*entities.Diagnosis, error) {
	out := []*entities.Diagnosis{}
	err := r.v.read(func(s *state) error {
		for _, d := range s.diagnoses {
			if !diagnosisValid(d, filter.AsOf) {
				continue
			}
			if filter.Search != "" && !containsFold(d.Code, filter.Search) && !containsFold(d.Name, filter.Search) {
				continue
			}
			c := *d
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, err
}

func (r *diagnosisRepo) GetByCode(_ context.Context, code string) (*entities.Diagnosis, error) {
	var out *entities.Diagnosis
	err := r.v.read(func(s *state) error {
		for _, d := range s.diagnoses {
			if d.Code == code && d.ValidityTo == nil {
				c := *d
				out = &c
				return nil
			}
		}
		return apperrors.NewNotFoundError(fmt.Sprintf("diagnosis %s does not exist", code))
	})
	return out, err
}

func diagnosisValid(d *entities.Diagnosis, asOf *time.Time) bool {
	if asOf == nil {
		return d.ValidityTo == nil
	}
	if asOf.Before(d.ValidityFrom) {
		return false
	}
	return d.ValidityTo == nil || asOf.Before(*d.ValidityTo)
}
