package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata/types"
)

const (
	primeAttempts = 10
	primeDelay    = 3 * time.Second
)

// dataAPI is the slice of the RDS Data API used by dbClient.
type dataAPI interface {
	ExecuteStatement(ctx context.Context, params *rdsdata.ExecuteStatementInput, optFns ...func(*rdsdata.Options)) (*rdsdata.ExecuteStatementOutput, error)
}

// dbClient provides read-only access to the ticket store through the Aurora
// Data API.
type dbClient struct {
	api        dataAPI
	clusterARN string
	secretARN  string
	dbName     string
	sleep      func(time.Duration)
}

func newDBClient(ctx context.Context, api dataAPI, clusterARN, secretARN, dbName string) (*dbClient, error) {
	c := &dbClient{
		api:        api,
		clusterARN: clusterARN,
		secretARN:  secretARN,
		dbName:     dbName,
		sleep:      time.Sleep,
	}

	if err := c.primeConnection(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// primeConnection pokes the database until it is awake. Aurora suspends idle
// clusters and resuming can take the better part of a minute, so retry with a
// fixed delay before giving up.
func (c *dbClient) primeConnection(ctx context.Context) error {
	for attempt := 0; attempt < primeAttempts; attempt++ {
		_, err := c.api.ExecuteStatement(ctx, &rdsdata.ExecuteStatementInput{
			ResourceArn:     aws.String(c.clusterARN),
			SecretArn:       aws.String(c.secretARN),
			Database:        aws.String(c.dbName),
			Sql:             aws.String("SELECT 1"),
			FormatRecordsAs: types.RecordsFormatTypeJson,
		})
		if err == nil {
			return nil
		}

		var resuming *types.DatabaseResumingException
		if !errors.As(err, &resuming) {
			return fmt.Errorf("failed to prime database connection: %w", err)
		}

		primeRetriesTotal.Inc()
		log.Println("Database is resuming, waiting 3 seconds")
		c.sleep(primeDelay)
	}

	return errors.New("the database took too long to resume")
}

// Select executes a read-only query and returns the rows as JSON. Anything
// other than a SELECT is rejected before it reaches the database.
func (c *dbClient) Select(ctx context.Context, query string, params []types.SqlParameter) ([]byte, error) {
	if !strings.HasPrefix(query, "SELECT") {
		return nil, fmt.Errorf("query must start with SELECT")
	}

	out, err := c.api.ExecuteStatement(ctx, &rdsdata.ExecuteStatementInput{
		ResourceArn: aws.String(c.clusterARN),
		SecretArn:   aws.String(c.secretARN),
		Database:    aws.String(c.dbName),
		Sql:         aws.String(query),
		Parameters:  params,
		ResultSetOptions: &types.ResultSetOptions{
			DecimalReturnType: types.DecimalReturnTypeDoubleOrLong,
			LongReturnType:    types.LongReturnTypeLong,
		},
		FormatRecordsAs: types.RecordsFormatTypeJson,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	if out.FormattedRecords == nil {
		return []byte("[]"), nil
	}
	return []byte(*out.FormattedRecords), nil
}
