package impl

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/policy-qa-backend/models"
	"github.com/policy-qa-backend/services"
)

// policyService reads policy metadata from Postgres via GORM.
type policyService struct {
	db *gorm.DB
}

func NewPolicyService(db *gorm.DB) services.PolicyService {
	return &policyService{db: db}
}

func (s *policyService) GetByID(ctx context.Context, id int) (*models.Policy, error) {
	var policy models.Policy
	err := s.db.WithContext(ctx).First(&policy, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", models.ErrPolicyNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	return &policy, nil
}

func (s *policyService) LookupPolicies(ctx context.Context, ids []int) (map[int]models.Policy, error) {
	result := make(map[int]models.Policy, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var policies []models.Policy
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}

	for _, p := range policies {
		result[p.ID] = p
	}
	return result, nil
}
