package model

// Owner is a stakeholder whose contribution weights their profit share.
type Owner struct {
	BaseModel
	Name               string  `gorm:"type:varchar(255);not null" json:"name"`
	ContributionAmount float64 `gorm:"type:double precision;not null;default:0" json:"contribution_amount"`
}

// ContributionRequest adds to an owner's contribution.
type ContributionRequest struct {
	Amount float64 `json:"amount" validate:"finite,gt=0"`
}
