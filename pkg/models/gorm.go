package models

// ModelsToAutoMigrate returns the destination store models in dependency order.
func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&Space{}, // Must be first - pages and members reference it
		&SpaceMember{},
		&Page{},
		&Backlink{},
		&Attachment{},
		&ImportJob{},
	}
}
