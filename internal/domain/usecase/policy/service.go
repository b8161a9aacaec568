// Package policy layers priced operations and named grant recipes over the ledger engine
package policy

import (
	"context"
	"fmt"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/usecase"
)

// Service implements usecase.PolicyUseCase
type Service struct {
	ledger usecase.LedgerUseCase
	logger coreport.Logger
	config Config
}

var _ usecase.PolicyUseCase = (*Service)(nil)

// NewService creates a policy service with the given price list
func NewService(ledger usecase.LedgerUseCase, logger coreport.Logger, config Config) *Service {
	return &Service{
		ledger: ledger,
		logger: logger,
		config: config,
	}
}

// DeductForGeneration charges a four-image generation
func (s *Service) DeductForGeneration(ctx context.Context, userID, projectID string) (*entity.TypedDeductResult, error) {
	return s.DeductForGenerationImages(ctx, userID, projectID, 4)
}

// DeductForGenerationImages charges a generation priced by image count
func (s *Service) DeductForGenerationImages(ctx context.Context, userID, projectID string, imageCount int) (*entity.TypedDeductResult, error) {
	price, ok := s.config.GenerationPrice(imageCount)
	if !ok {
		return nil, errs.NewValidationError("imageCount", imageCount, errs.ErrInvalidImageCount)
	}

	return s.ledger.DeductCreditsWithType(ctx, entity.SpendRequest{
		UserID:      userID,
		Amount:      price,
		Type:        entity.TypeGeneration,
		Description: fmt.Sprintf("Image generation (%d images)", imageCount),
		Metadata: entity.Metadata{
			"operation":  "generation",
			"projectId":  projectID,
			"imageCount": imageCount,
		},
	}, entity.PreferAuto)
}

// DeductForUpscale charges a 4K upscale
func (s *Service) DeductForUpscale(ctx context.Context, userID, projectID string) (*entity.TypedDeductResult, error) {
	return s.ledger.DeductCreditsWithType(ctx, entity.SpendRequest{
		UserID:      userID,
		Amount:      s.config.UpscalePrice,
		Type:        entity.TypeUpscale,
		Description: "4K upscale",
		Metadata: entity.Metadata{
			"operation":  "upscale",
			"projectId":  projectID,
			"resolution": "4K",
		},
	}, entity.PreferAuto)
}

// GrantSignupBonus grants the tier's bonus with the standard expiry.
// Repeated signup events are not deduplicated here.
func (s *Service) GrantSignupBonus(ctx context.Context, userID string, signupType entity.SignupType) (int64, error) {
	var amount int64
	switch signupType {
	case entity.SignupGeneral:
		amount = s.config.SignupBonusGeneral
	case entity.SignupBusiness:
		amount = s.config.SignupBonusBusiness
	default:
		return 0, errs.NewValidationError("signupType", signupType, errs.ErrInvalidSignupType)
	}

	expiry := s.config.BonusExpiryDays
	return s.ledger.AddCredits(ctx, entity.GrantRequest{
		UserID:        userID,
		Amount:        amount,
		Type:          entity.TypeBonus,
		Description:   fmt.Sprintf("Signup bonus (%s)", signupType),
		ExpiresInDays: &expiry,
		Metadata: entity.Metadata{
			"signupType": string(signupType),
		},
	})
}

// GrantReferralReward grants the reward to the referrer, then to the referee.
// The two grants are not jointly atomic: when the second fails the first stays
// committed and the partial result is returned with the error.
func (s *Service) GrantReferralReward(ctx context.Context, referrerID, refereeID string) (*entity.ReferralResult, error) {
	if referrerID == "" || refereeID == "" {
		return nil, errs.NewValidationError("userId", "", errs.ErrInvalidUserID)
	}
	if referrerID == refereeID {
		return nil, errs.NewValidationError("refereeId", refereeID, fmt.Errorf("%w: self-referral", errs.ErrInvalidRequest))
	}

	expiry := s.config.BonusExpiryDays
	grant := func(userID, role, counterpart string) (int64, error) {
		return s.ledger.AddCredits(ctx, entity.GrantRequest{
			UserID:        userID,
			Amount:        s.config.ReferralReward,
			Type:          entity.TypeReferral,
			Description:   fmt.Sprintf("Referral reward (%s)", role),
			ExpiresInDays: &expiry,
			Metadata: entity.Metadata{
				"role":        role,
				"counterpart": counterpart,
			},
		})
	}

	result := &entity.ReferralResult{}

	balance, err := grant(referrerID, "referrer", refereeID)
	if err != nil {
		return result, fmt.Errorf("referrer grant: %w", err)
	}
	result.ReferrerBalance = balance
	result.ReferrerGranted = true

	balance, err = grant(refereeID, "referee", referrerID)
	if err != nil {
		s.logger.Error("Referral reward partially granted", map[string]any{
			"referrerId": referrerID,
			"refereeId":  refereeID,
			"error":      err.Error(),
		})
		return result, fmt.Errorf("referee grant: %w", err)
	}
	result.RefereeBalance = balance
	result.RefereeGranted = true

	return result, nil
}

// GrantAdminBonus grants an operator bonus recorded with the admin's ID.
// A nil expiresInDays grant never expires.
func (s *Service) GrantAdminBonus(
	ctx context.Context,
	adminID, userID string,
	amount int64,
	description string,
	expiresInDays *int,
) (*entity.AdminGrantResult, error) {
	if adminID == "" {
		return nil, errs.NewValidationError("adminId", adminID, errs.ErrInvalidRequest)
	}
	if description == "" {
		description = "Admin bonus"
	}

	result, err := s.ledger.Grant(ctx, entity.GrantRequest{
		UserID:        userID,
		Amount:        amount,
		Type:          entity.TypeBonus,
		Description:   description,
		ExpiresInDays: expiresInDays,
		Metadata: entity.Metadata{
			"adminId": adminID,
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Admin bonus granted", map[string]any{
		"adminId":       adminID,
		"userId":        userID,
		"amount":        amount,
		"transactionId": result.Transaction.ID,
	})
	return &entity.AdminGrantResult{NewBalance: result.Balance, Transaction: result.Transaction}, nil
}
