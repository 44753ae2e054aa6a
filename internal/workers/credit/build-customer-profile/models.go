// internal/workers/credit/build-customer-profile/models.go
package buildcustomerprofile

import (
	"credit-workers/internal/models"
)

type Input struct {
	IdentityDocument string `json:"identityDocument"`
}

type Output struct {
	CustomerProfile     *models.CustomerProfile `json:"customerProfile"`
	SemanticDescription string                  `json:"semanticDescription"`
}
