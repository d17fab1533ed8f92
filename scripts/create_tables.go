package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	fmt.Println("Creating Policy QA database tables...")

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=policyuser password=policypassword dbname=policy_db sslmode=disable"
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test connection
	err = db.Ping()
	if err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("✅ Connected to database")

	// Create policies table
	fmt.Println("Creating policies table...")
	createPoliciesTable := `
	CREATE TABLE IF NOT EXISTS policies (
		id SERIAL PRIMARY KEY,
		program_id VARCHAR(100) UNIQUE,
		program_name VARCHAR(500) NOT NULL,
		region VARCHAR(100),
		category VARCHAR(100),
		program_overview TEXT,
		apply_target TEXT,
		support_description TEXT,
		support_budget VARCHAR(255),
		support_scale VARCHAR(255),
		supervising_ministry VARCHAR(255),
		announcement_date VARCHAR(100),
		application_method TEXT,
		url VARCHAR(1000),
		contact_agency JSONB DEFAULT '[]',
		contact_number JSONB DEFAULT '[]',
		required_documents JSONB DEFAULT '[]',
		collected_date VARCHAR(100),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`

	_, err = db.Exec(createPoliciesTable)
	if err != nil {
		log.Printf("Warning: Failed to create policies table: %v", err)
	} else {
		fmt.Println("✅ Policies table created/verified")
	}

	// Create indexes
	fmt.Println("Creating indexes...")
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_policies_region ON policies(region)`,
		`CREATE INDEX IF NOT EXISTS idx_policies_category ON policies(category)`,
		`CREATE INDEX IF NOT EXISTS idx_policies_program_name ON policies(program_name)`,
	}

	for _, index := range indexes {
		_, err = db.Exec(index)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
		}
	}
	fmt.Println("✅ Indexes created/verified")

	fmt.Println("\n🎉 Database setup complete!")
	fmt.Println("Load policy rows with the ingestion pipeline, then start the server.")
}
