package service

import (
	"time"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/repository"
	"github.com/eksporyuk-migrate/internal/rules"

	"gorm.io/gorm"
)

// GrantAction 会员授予结果
type GrantAction string

const (
	GrantSkipped   GrantAction = "skipped"
	GrantCreated   GrantAction = "created"
	GrantUpgraded  GrantAction = "upgraded"
	GrantExtended  GrantAction = "extended"
	GrantUnchanged GrantAction = "unchanged"
)

// Changed 是否写入了会员记录
func (a GrantAction) Changed() bool {
	return a == GrantCreated || a == GrantUpgraded || a == GrantExtended
}

// GrantInput 会员授予输入
type GrantInput struct {
	UserID        uint
	Tier          rules.Tier
	Start         time.Time
	TransactionID *uint
}

// MembershipService 会员服务
type MembershipService struct {
	membershipRepo *repository.GormMembershipRepository
	userRepo       *repository.GormUserRepository
}

// NewMembershipService 创建会员服务
func NewMembershipService(membershipRepo *repository.GormMembershipRepository, userRepo *repository.GormUserRepository) *MembershipService {
	return &MembershipService{membershipRepo: membershipRepo, userRepo: userRepo}
}

// GrantTx 在事务内创建或升级用户唯一的会员记录：高等级原地升级，同等级取更晚的到期时间，低等级不降级
func (s *MembershipService) GrantTx(tx *gorm.DB, input GrantInput) (GrantAction, error) {
	if input.UserID == 0 || !input.Tier.IsMembership() {
		return GrantSkipped, nil
	}
	repo := s.membershipRepo.WithTx(tx)
	catalogue, err := s.catalogueEntry(repo, input.Tier)
	if err != nil {
		return GrantSkipped, err
	}
	start := input.Start
	if start.IsZero() {
		start = time.Now()
	}
	end := input.Tier.EndDate(start)

	current, err := repo.GetUserMembershipForUpdate(input.UserID)
	if err != nil {
		return GrantSkipped, err
	}
	if current == nil {
		membership := &models.UserMembership{
			UserID:        input.UserID,
			MembershipID:  catalogue.ID,
			Tier:          input.Tier.String(),
			Status:        constants.MembershipStatusActive,
			StartDate:     start,
			EndDate:       end,
			TransactionID: input.TransactionID,
		}
		if err := repo.CreateUserMembership(membership); err != nil {
			return GrantSkipped, err
		}
		if err := s.syncRole(tx, input.UserID, input.Tier); err != nil {
			return GrantSkipped, err
		}
		return GrantCreated, nil
	}

	currentTier, ok := rules.TierFromString(current.Tier)
	if !ok {
		currentTier = rules.TierNotMembership
	}
	switch {
	case input.Tier.Priority() > currentTier.Priority():
		current.MembershipID = catalogue.ID
		current.Tier = input.Tier.String()
		current.Status = constants.MembershipStatusActive
		current.StartDate = start
		current.EndDate = end
		current.TransactionID = input.TransactionID
		if err := repo.UpdateUserMembership(current); err != nil {
			return GrantSkipped, err
		}
		if err := s.syncRole(tx, input.UserID, input.Tier); err != nil {
			return GrantSkipped, err
		}
		return GrantUpgraded, nil
	case input.Tier.Priority() == currentTier.Priority():
		if end == nil || current.EndDate == nil || !end.After(*current.EndDate) {
			return GrantUnchanged, nil
		}
		current.EndDate = end
		current.Status = constants.MembershipStatusActive
		current.TransactionID = input.TransactionID
		if err := repo.UpdateUserMembership(current); err != nil {
			return GrantSkipped, err
		}
		return GrantExtended, nil
	default:
		return GrantUnchanged, nil
	}
}

func (s *MembershipService) catalogueEntry(repo *repository.GormMembershipRepository, tier rules.Tier) (*models.Membership, error) {
	entry, err := repo.GetByTier(tier.String())
	if err != nil || entry != nil {
		return entry, err
	}
	for _, item := range models.DefaultMemberships() {
		if item.Tier != tier.String() {
			continue
		}
		seed := item
		if err := repo.CreateMembership(&seed); err != nil {
			return nil, err
		}
		break
	}
	entry, err = repo.GetByTier(tier.String())
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrMembershipCatalogueMissing
	}
	return entry, nil
}

func (s *MembershipService) syncRole(tx *gorm.DB, userID uint, tier rules.Tier) error {
	role := constants.UserRoleMemberPremium
	if tier == rules.TierLifetime {
		role = constants.UserRoleMemberLifetime
	}
	return s.userRepo.WithTx(tx).UpdateRole(userID, role)
}
