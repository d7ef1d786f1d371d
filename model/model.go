package model

import "gorm.io/gorm"

var Models = []interface{}{
	&SecurityAlert{},
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models...)
}
