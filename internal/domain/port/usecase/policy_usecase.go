package usecase

import (
	"context"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

// PolicyUseCase exposes priced operations and named grant recipes
type PolicyUseCase interface {
	// DeductForGeneration charges a four-image generation
	DeductForGeneration(ctx context.Context, userID, projectID string) (*entity.TypedDeductResult, error)

	// DeductForGenerationImages charges a generation of imageCount images
	DeductForGenerationImages(ctx context.Context, userID, projectID string, imageCount int) (*entity.TypedDeductResult, error)

	// DeductForUpscale charges a 4K upscale
	DeductForUpscale(ctx context.Context, userID, projectID string) (*entity.TypedDeductResult, error)

	// GrantSignupBonus grants the tier's expiring signup bonus
	GrantSignupBonus(ctx context.Context, userID string, signupType entity.SignupType) (int64, error)

	// GrantReferralReward grants the referral reward to both parties independently
	GrantReferralReward(ctx context.Context, referrerID, refereeID string) (*entity.ReferralResult, error)

	// GrantAdminBonus grants an operator bonus; nil expiresInDays never expires
	GrantAdminBonus(ctx context.Context, adminID, userID string, amount int64, description string, expiresInDays *int) (*entity.AdminGrantResult, error)
}
