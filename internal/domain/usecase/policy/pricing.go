package policy

// Operation prices in credits
const (
	PriceGeneration4 int64 = 20
	PriceGeneration2 int64 = 10
	PriceUpscale4K   int64 = 10
)

// Grant amounts in credits
const (
	SignupBonusGeneral  int64 = 30
	SignupBonusBusiness int64 = 100
	ReferralReward      int64 = 40
)

// DefaultBonusExpiryDays is the expiry window of signup and referral grants
const DefaultBonusExpiryDays = 30

// Config holds the prices and grant amounts applied by the Service
type Config struct {
	GenerationPrices    map[int]int64 // by image count
	UpscalePrice        int64
	SignupBonusGeneral  int64
	SignupBonusBusiness int64
	ReferralReward      int64
	BonusExpiryDays     int
}

// DefaultConfig returns the standard price list
func DefaultConfig() Config {
	return Config{
		GenerationPrices: map[int]int64{
			4: PriceGeneration4,
			2: PriceGeneration2,
		},
		UpscalePrice:        PriceUpscale4K,
		SignupBonusGeneral:  SignupBonusGeneral,
		SignupBonusBusiness: SignupBonusBusiness,
		ReferralReward:      ReferralReward,
		BonusExpiryDays:     DefaultBonusExpiryDays,
	}
}

// GenerationPrice returns the price for imageCount images
func (c Config) GenerationPrice(imageCount int) (int64, bool) {
	price, ok := c.GenerationPrices[imageCount]
	return price, ok && price > 0
}
