package auth

import (
	"github.com/casbin/casbin/v2"
)

type CasbinService struct{ E *casbin.Enforcer }

// NewCasbinService builds the enforcer from the model and csv policy files.
// The gateway has no relational database, so the file adapter is the policy
// store; SavePolicy writes back to the csv.
func NewCasbinService(modelPath, policyPath string) (*CasbinService, error) {
	E, err := casbin.NewEnforcer(modelPath, policyPath)
	if err != nil {
		return nil, err
	}
	if err := E.LoadPolicy(); err != nil {
		return nil, err
	}
	return &CasbinService{E}, nil
}
