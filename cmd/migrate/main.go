package main

import (
	"log"

	"milk-subscription-be/internal/config"
	"milk-subscription-be/internal/model"
	"milk-subscription-be/pkg/database"
)

func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Driver, cfg.Database.Connection, cfg.IsProduction())
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	models := []interface{}{
		&model.User{},
		&model.Subscription{},
		&model.SubscriptionHistory{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	if cfg.Database.Driver == database.DriverSQLite {
		log.Println("Success: SQLite migration completed.")
		return
	}

	log.Println("Creating partial index and triggers...")

	postMigrationSQL := []string{
		// Webhook lookups only care about rows still backed by a payment.
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_live_payment
		 ON subscriptions (payment_id) WHERE status IN ('active', 'paused');`,

		// An archived payment can never back a new subscription.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_subscription_histories_payment
		 ON subscription_histories (payment_id) WHERE payment_id <> '';`,

		`CREATE OR REPLACE FUNCTION set_current_timestamp_updated_at() RETURNS trigger LANGUAGE plpgsql AS $$
		DECLARE _new_value TIMESTAMP WITH TIME ZONE;
		BEGIN
		  _new_value := now();
		  IF NEW.updated_at IS DISTINCT FROM _new_value THEN NEW.updated_at = _new_value; END IF;
		  RETURN NEW;
		END; $$;`,

		`DROP TRIGGER IF EXISTS set_subscriptions_updated_at ON subscriptions;`,
		`CREATE TRIGGER set_subscriptions_updated_at BEFORE UPDATE ON subscriptions
		 FOR EACH ROW EXECUTE FUNCTION set_current_timestamp_updated_at();`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("Success: Database migration completed successfully via GORM.")
}
