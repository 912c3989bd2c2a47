package models

import (
	"log"

	"bitbucket.org/mmdatafocus/mes_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Material{}, &OrderLine{},
		&Batch{}, &BatchRelation{}, &BatchOrderAllocation{},
		&BatchNumberConfig{}, &BatchSequence{},
		&ProductionProcess{}, &Operation{}, &Hold{},
		&ProductionConfirmation{}, &ProductionConfirmationMaterial{}, &ProductionConfirmationOutput{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
