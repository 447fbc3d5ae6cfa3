package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hrdatainsights/salary-platform/internal/analytics"
	"github.com/hrdatainsights/salary-platform/internal/estimator"
	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
	"github.com/hrdatainsights/salary-platform/pkg/proto"
	"github.com/hrdatainsights/salary-platform/pkg/rpc"
)

// RegisterRPC exposes the SalaryEstimator service on s. RPC calls go
// through the same validation, metrics and analytics as HTTP requests.
func (h *Handler) RegisterRPC(s *rpc.Server) {
	s.Register(proto.MethodEstimate, h.rpcEstimate)
	s.Register(proto.MethodOptions, h.rpcOptions)
}

func (h *Handler) rpcEstimate(ctx context.Context, params json.RawMessage) (any, error) {
	var req proto.EstimateRequest
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: missing params", apperrors.ErrInvalidInput)
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("%w: decoding params: %v", apperrors.ErrInvalidInput, err)
	}
	q := estimator.Query{
		Country:         req.Country,
		EducationLevel:  req.EducationLevel,
		YearsExperience: int(req.YearsExperience),
	}
	if err := h.checkLimits(q); err != nil {
		return nil, err
	}
	est, err := h.run(ctx, analytics.EventEstimate, q)
	if err != nil {
		return nil, err
	}
	return estimateResponse(est), nil
}

func (h *Handler) rpcOptions(ctx context.Context, _ json.RawMessage) (any, error) {
	return optionsResponse(h.est.Options()), nil
}
