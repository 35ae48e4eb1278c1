package database

import "artvault/internal/models"

// PersistentModels lists the tables AutoMigrate manages, referenced tables
// first: users, then posts and their exhibitions, then comments and the two
// reaction membership tables.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Exhibition{},
		&models.Comment{},
		&models.Like{},
		&models.Save{},
	}
}
