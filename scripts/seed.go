package main

import (
	"context"
	"os"

	"github.com/shopspring/decimal"

	"github.com/openimis/openimis-be-medical/internal/adapters/cache"
	"github.com/openimis/openimis-be-medical/internal/adapters/database"
	"github.com/openimis/openimis-be-medical/internal/application/services"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/clients/postgres"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/clients/redis"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/observability"
	"github.com/openimis/openimis-be-medical/migrations"
	"github.com/openimis/openimis-be-medical/pkg/config"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

var seedCaller = entities.NewCaller("seed", 1,
	"122101", "122102", "122103", "122104",
	"121401", "121402", "121403", "121404",
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := observability.InitLogger("medical-seed", cfg.Env)
	ctx := context.Background()

	pgClient, err := postgres.NewClient(&cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer pgClient.Close()

	if _, err := pgClient.Migrate(ctx, migrations.FS); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate")
	}

	if os.Getenv("RESET_DB") == "true" {
		logger.Warn().Msg("RESET_DB=true detected, truncating catalog tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				"medical_ItemMutation",
				"medical_ServiceMutation",
				"tblServiceContainedItems",
				"tblServiceContainedServices",
				"tblPLItemsDetail",
				"tblPLServicesDetail",
				"tblItems",
				"tblServices",
				"tblICDCodes"
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	diagnoses := []struct{ code, name string }{
		{"A09", "Infectious gastroenteritis and colitis"},
		{"B54", "Unspecified malaria"},
		{"J06", "Acute upper respiratory infections"},
		{"O80", "Single spontaneous delivery"},
	}
	for _, d := range diagnoses {
		_, err := pgClient.DB().ExecContext(ctx,
			`INSERT INTO "tblICDCodes" ("ICDCode", "ICDName", "ValidityFrom", "AuditUserID")
			 SELECT $1::varchar, $2::varchar, now(), $3::integer
			 WHERE NOT EXISTS (SELECT 1 FROM "tblICDCodes" WHERE "ICDCode" = $1::varchar AND "ValidityTo" IS NULL)`,
			d.code, d.name, seedCaller.AuditUserID)
		if err != nil {
			logger.Error().Err(err).Str("code", d.code).Msg("failed to seed diagnosis")
		}
	}

	store := database.NewStore(pgClient, nil)

	// A running API may have cached the previous ICD listing.
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable; diagnosis cache not invalidated")
		} else {
			cached := database.NewCachedDiagnosisAdapter(
				store.Store().Diagnoses(), cache.NewRedisAdapter(redisClient), cfg.Catalog.DiagnosisCacheTTL, nil, logger)
			if err := cached.Invalidate(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to invalidate diagnosis cache")
			}
			redisClient.Close()
		}
	}

	catalog := services.NewCatalogService(services.CatalogDeps{
		Store:       store,
		Permissions: entities.DefaultPermissionTable(),
	})

	items := []*entities.ItemInput{
		itemInput("PARA5", "Paracetamol 500mg tablet", entities.ItemTypeDrug, "0.05"),
		itemInput("AMOX2", "Amoxicillin 250mg capsule", entities.ItemTypeDrug, "0.12"),
		itemInput("ORS1", "Oral rehydration salts sachet", entities.ItemTypeDrug, "0.30"),
		itemInput("GLOV1", "Examination gloves (pair)", entities.ItemTypeConsumable, "0.20"),
		itemInput("SYR5", "Syringe 5ml", entities.ItemTypeConsumable, "0.10"),
	}
	itemIDs := make(map[string]int64, len(items))
	for _, in := range items {
		item, err := catalog.CreateItem(ctx, seedCaller, in)
		if apperrors.IsType(err, apperrors.ErrorTypeCodeAlreadyExists) {
			logger.Info().Str("code", in.Code).Msg("item already seeded")
			continue
		}
		if err != nil {
			logger.Fatal().Err(err).Str("code", in.Code).Msg("failed to seed item")
		}
		itemIDs[item.Code] = item.ID
	}

	consultation := serviceInput("CONS1", "General consultation", entities.ServiceLevelVisit, entities.ServiceCategoryConsultation, "5.00")
	delivery := serviceInput("DELIV1", "Normal delivery package", entities.ServiceLevelDayHospital, entities.ServiceCategoryDelivery, "45.00")
	delivery.PackageType = entities.PackageTypePackage
	for code, qty := range map[string]int64{"GLOV1": 4, "SYR5": 2} {
		if id, ok := itemIDs[code]; ok {
			delivery.Items = append(delivery.Items, entities.ServiceItemInput{
				ItemID:      id,
				Status:      entities.StatusOf(entities.LinkStatusActive),
				QtyProvided: decimal.NewNullDecimal(decimal.NewFromInt(qty)),
			})
		}
	}

	for _, in := range []*entities.ServiceInput{consultation, delivery} {
		_, err := catalog.CreateService(ctx, seedCaller, in)
		if apperrors.IsType(err, apperrors.ErrorTypeCodeAlreadyExists) {
			logger.Info().Str("code", in.Code).Msg("service already seeded")
			continue
		}
		if err != nil {
			logger.Fatal().Err(err).Str("code", in.Code).Msg("failed to seed service")
		}
	}

	logger.Info().Int("items", len(itemIDs)).Msg("catalog seeded")
}

func itemInput(code, name, itemType, price string) *entities.ItemInput {
	category := int16(entities.PatientCategoryAll)
	return &entities.ItemInput{
		EntryInput: entities.EntryInput{
			Code:            code,
			Name:            name,
			CareType:        entities.CareTypeBoth,
			Price:           priceOf(price),
			PatientCategory: &category,
		},
		Type: itemType,
	}
}

func serviceInput(code, name, level, category, price string) *entities.ServiceInput {
	patients := int16(entities.PatientCategoryAll)
	return &entities.ServiceInput{
		EntryInput: entities.EntryInput{
			Code:            code,
			Name:            name,
			CareType:        entities.CareTypeOutPatient,
			Price:           priceOf(price),
			PatientCategory: &patients,
		},
		Type:     "P",
		Level:    level,
		Category: &category,
	}
}

func priceOf(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
