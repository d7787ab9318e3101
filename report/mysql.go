package report

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/rubiojr/go-strawberrypi/station"
)

const (
	insertSensorData = "INSERT INTO SensorData (timestamp, temperature, humidity, light) VALUES (NOW(), ?, ?, ?)"
	insertGasData    = "INSERT INTO GasData (data_id, co_ppm, lpg_ppm) VALUES (NOW(), ?, ?)"
)

// MySQL stores measurements in SensorData and gas alarms in GasData.
type MySQL struct {
	db *sql.DB
}

// OpenMySQL connects using a go-sql-driver DSN such as
// "root:root@tcp(localhost:3306)/strawberrypi".
func OpenMySQL(ctx context.Context, dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to mysql")
	}
	return NewMySQL(db), nil
}

func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

func (s *MySQL) ReportClimate(ctx context.Context, m station.Measurement) error {
	_, err := s.db.ExecContext(ctx, insertSensorData, round(m.Celsius(), 1), round(m.Percent(), 1), m.Light)
	return errors.Wrap(err, "insert into SensorData")
}

func (s *MySQL) ReportGas(ctx context.Context, g station.GasSample) error {
	if !g.Alarm {
		return nil
	}
	_, err := s.db.ExecContext(ctx, insertGasData, round(g.CO, 2), round(g.LPG, 2))
	return errors.Wrap(err, "insert into GasData")
}

func (s *MySQL) ReportFailure(ctx context.Context, f station.Failure) error {
	return nil
}

func (s *MySQL) Close() error {
	return s.db.Close()
}
