package implementation

import (
	"context"
	"errors"

	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/mapper"
	"milk-subscription-be/internal/model"
	"milk-subscription-be/internal/repository/contract"
	"milk-subscription-be/internal/repository/specification"

	"gorm.io/gorm"
)

type UserRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.UserMapper
}

func NewUserRepository(db *gorm.DB) contract.UserRepository {
	return &UserRepositoryImpl{
		db:     db,
		mapper: mapper.NewUserMapper(),
	}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *entity.User) error {
	modelUser := r.mapper.ToModel(user)
	if err := r.db.WithContext(ctx).Create(modelUser).Error; err != nil {
		return err
	}
	*user = *r.mapper.ToEntity(modelUser)
	return nil
}

func (r *UserRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	var modelUser model.User
	if err := specification.ApplyAll(r.db.WithContext(ctx), specs...).First(&modelUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&modelUser), nil
}

func (r *UserRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.User, error) {
	var modelUsers []*model.User
	if err := specification.ApplyAll(r.db.WithContext(ctx), specs...).Find(&modelUsers).Error; err != nil {
		return nil, err
	}

	users := make([]*entity.User, len(modelUsers))
	for i, u := range modelUsers {
		users[i] = r.mapper.ToEntity(u)
	}
	return users, nil
}

func (r *UserRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	err := specification.ApplyAll(r.db.WithContext(ctx).Model(&model.User{}), specs...).Count(&count).Error
	return count, err
}
