package products

import (
	"fmt"
	"strings"

	"github.com/resto-erp/resto-erp/internal/masterdata/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: product code", shared.ErrRequiredField)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name", shared.ErrRequiredField)
	}
	if p.SalePrice < 0 || p.DefaultMarkup < 0 {
		return shared.ErrValidation
	}
	return nil
}
