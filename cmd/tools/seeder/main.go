package main

import (
	"context"
	"log"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Seeds a development database with a handful of accounts, warehouses,
// parcels and shipments. Safe to re-run: every insert is an upsert or
// guarded by ON CONFLICT DO NOTHING.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	seedUsers(ctx, pool)
	seedWarehouses(ctx, pool)
	seedShipmentsAndParcels(ctx, pool)

	log.Println("seeding completed")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) {
	users := []struct {
		Cedula    string
		Email     string
		PNombre   string
		PApellido string
		Telefono  string
		Rol       string
	}{
		{"V-10000001", "admin@cargotrack.test", "Luisa", "Paredes", "+58-412-1000001", "admin"},
		{"V-10000002", "operaciones@cargotrack.test", "Marcos", "Rivas", "+58-412-1000002", "empleado"},
		{"V-20000001", "ana@example.com", "Ana", "Marcano", "+58-414-2000001", "cliente"},
		{"V-20000002", "jose@example.com", "Jose", "Caldera", "+58-414-2000002", "cliente"},
		{"V-20000003", "maria@example.com", "Maria", "Urbina", "+58-416-2000003", "cliente"},
		{"V-20000004", "pedro@example.com", "Pedro", "Lamas", "+58-424-2000004", "cliente"},
	}

	hash, err := argon2id.CreateHash("password123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("hash seed password: %v", err)
	}

	log.Println("seeding users")
	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (cedula, email, p_nombre, p_apellido, telefono, password_hash, rol)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (email) DO NOTHING`,
			u.Cedula, u.Email, u.PNombre, u.PApellido, u.Telefono, hash, u.Rol)
		if err != nil {
			log.Printf("seed user %s: %v", u.Email, err)
		}
	}
}

func seedWarehouses(ctx context.Context, pool *pgxpool.Pool) {
	warehouses := []struct {
		Telefono     string
		Linea1       string
		Pais         string
		EstadoRegion string
		Ciudad       string
		CodPostal    string
	}{
		{"+1-305-555-0100", "8800 NW 24th Terrace", "Estados Unidos", "Florida", "Miami", "33172"},
		{"+58-212-555-0200", "Av. Principal de La Yaguara", "Venezuela", "Distrito Capital", "Caracas", "1090"},
		{"+58-241-555-0300", "Zona Industrial Municipal Norte", "Venezuela", "Carabobo", "Valencia", "2001"},
	}

	log.Println("seeding warehouses")
	for _, w := range warehouses {
		_, err := pool.Exec(ctx, `
			INSERT INTO warehouses (telefono, linea1, pais, estado_region, ciudad, codpostal)
			SELECT $1, $2, $3, $4, $5, $6
			WHERE NOT EXISTS (SELECT 1 FROM warehouses WHERE ciudad = $5 AND linea1 = $2)`,
			w.Telefono, w.Linea1, w.Pais, w.EstadoRegion, w.Ciudad, w.CodPostal)
		if err != nil {
			log.Printf("seed warehouse %s: %v", w.Ciudad, err)
		}
	}
}

func seedShipmentsAndParcels(ctx context.Context, pool *pgxpool.Pool) {
	var employeeID, originID, destinationID int64
	if err := pool.QueryRow(ctx, `SELECT id FROM users WHERE rol = 'empleado' ORDER BY id LIMIT 1`).Scan(&employeeID); err != nil {
		log.Printf("no employee found, skipping shipments: %v", err)
		return
	}
	if err := pool.QueryRow(ctx, `SELECT id FROM warehouses WHERE ciudad = 'Miami' LIMIT 1`).Scan(&originID); err != nil {
		log.Printf("no origin warehouse, skipping shipments: %v", err)
		return
	}
	if err := pool.QueryRow(ctx, `SELECT id FROM warehouses WHERE ciudad = 'Caracas' LIMIT 1`).Scan(&destinationID); err != nil {
		log.Printf("no destination warehouse, skipping shipments: %v", err)
		return
	}

	var shipmentCount int64
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM shipments`).Scan(&shipmentCount); err == nil && shipmentCount > 0 {
		log.Println("shipments already present, skipping")
		return
	}

	log.Println("seeding shipments and parcels")
	var numero int64
	err := pool.QueryRow(ctx, `
		INSERT INTO shipments (tipo, status, origin_id, destination_id, employee_id)
		VALUES ('barco', 'en puerto de salida', $1, $2, $3)
		RETURNING numero`,
		originID, destinationID, employeeID).Scan(&numero)
	if err != nil {
		log.Printf("seed shipment: %v", err)
		return
	}

	parcels := []struct {
		Descripcion string
		Largo       float64
		Ancho       float64
		Alto        float64
		Peso        float64
	}{
		{"Caja de repuestos", 24, 18, 12, 35.5},
		{"Electrodoméstico pequeño", 20, 20, 20, 42},
		{"Ropa y calzado", 18, 14, 10, 15.2},
	}
	for _, p := range parcels {
		volumen := p.Largo * p.Ancho * p.Alto / 1728
		_, err := pool.Exec(ctx, `
			INSERT INTO parcels (descripcion, largo_in, ancho_in, alto_in, peso_lb, volumen_ft3, status, warehouse_id, employee_id, shipment_numero)
			VALUES ($1, $2, $3, $4, $5, $6, 'En almacén', $7, $8, $9)`,
			p.Descripcion, p.Largo, p.Ancho, p.Alto, p.Peso, volumen, originID, employeeID, numero)
		if err != nil {
			log.Printf("seed parcel %q: %v", p.Descripcion, err)
		}
	}
}
