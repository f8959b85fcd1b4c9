package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with a default tenant and sample users for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{"audit_logs", "impersonation_sessions", "courses", "invitations", "users", "tenants"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), cfg.Security.BCryptCost)

		var defaultTenantID int64
		row := db.Raw("SELECT id FROM tenants WHERE is_default = true").Row()
		if err := row.Scan(&defaultTenantID); err != nil {
			insert := db.Raw(
				`INSERT INTO tenants (name, domain, plan, is_active, is_default, created_at, updated_at)
				 VALUES (?, ?, ?, true, true, now(), now()) RETURNING id`,
				"Acme University", "acme.edu", "pro").Row()
			if err := insert.Scan(&defaultTenantID); err != nil {
				log.Fatalf("failed to seed default tenant: %v", err)
			}
			fmt.Println("Seeded default tenant: acme.edu")
		} else {
			fmt.Println("default tenant already exists")
		}

		users := []struct {
			Email      string
			Name       string
			Role       string
			TenantID   *int64
			IsInternal bool
		}{
			{"root@courseloom.io", "Platform Root", "super_admin", nil, true},
			{"ops@courseloom.io", "Platform Ops", "internal_admin", nil, true},
			{"support@courseloom.io", "Support Staff", "internal_support", nil, true},
			{"admin@acme.edu", "Acme Admin", "tenant_admin", &defaultTenantID, false},
			{"prof@acme.edu", "Acme Professor", "faculty", &defaultTenantID, false},
			{"student@acme.edu", "Acme Student", "student", &defaultTenantID, false},
		}

		for _, u := range users {
			var exists int
			if err := db.Raw("SELECT 1 FROM users WHERE email = ?", u.Email).Row().Scan(&exists); err == nil {
				fmt.Println("user already exists:", u.Email)
				continue
			}
			if err := db.Exec(
				`INSERT INTO users (email, name, password_hash, role, tenant_id, is_active, is_internal, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, true, ?, now(), now())`,
				u.Email, u.Name, string(hash), u.Role, u.TenantID, u.IsInternal).Error; err != nil {
				log.Fatalf("failed to seed user %s: %v", u.Email, err)
			}
			fmt.Println("Seeded user:", u.Email)
		}

		// A pending faculty invitation so the invitation signup flow can be
		// exercised against seeded data.
		inviteEmail := "invite@acme.edu"
		var invExists int
		if err := db.Raw("SELECT 1 FROM invitations WHERE email = ? AND accepted_at IS NULL", inviteEmail).Row().Scan(&invExists); err != nil {
			expiresAt := time.Now().AddDate(0, 0, cfg.Security.InvitationValidDays)
			if err := db.Exec(
				`INSERT INTO invitations (token, email, tenant_id, role, expires_at)
				 VALUES (?, ?, ?, ?, ?)`,
				uuid.NewString(), inviteEmail, defaultTenantID, "faculty", expiresAt).Error; err != nil {
				log.Fatalf("failed to seed invitation: %v", err)
			}
			fmt.Println("Seeded pending invitation:", inviteEmail)
		}

		// Support staff gets the default tenant on the supported list.
		if err := db.Exec(
			`UPDATE users SET supported_tenant_ids = ? WHERE email = ?`,
			fmt.Sprintf("[%d]", defaultTenantID), "support@courseloom.io").Error; err != nil {
			log.Fatalf("failed to set supported tenants: %v", err)
		}

		fmt.Println("Seeding complete")
	},
}
