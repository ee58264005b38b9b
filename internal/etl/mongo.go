package etl

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// MongoReportSink stores one document per run report.
type MongoReportSink struct {
	Client     *mongo.Client
	Database   string
	Collection string
}

func NewMongoReportSink(client *mongo.Client, database, collection string) *MongoReportSink {
	return &MongoReportSink{Client: client, Database: database, Collection: collection}
}

func (m *MongoReportSink) Save(ctx context.Context, report *models.RunReport) error {
	coll := m.Client.Database(m.Database).Collection(m.Collection)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := coll.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("insert run report %s: %w", report.RunID, err)
	}
	return nil
}
