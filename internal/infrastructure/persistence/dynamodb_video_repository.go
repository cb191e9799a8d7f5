package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/molpadia/molpalearn/internal/domain/repository"
)

// DynamoDBVideoRepository stores one item per video keyed by "Id". Listing
// scans the table and pages in process, which suits catalogs of a few
// thousand videos.
type DynamoDBVideoRepository struct {
	db        dynamodbiface.DynamoDBAPI
	tableName string
}

var _ repository.VideoRepository = (*DynamoDBVideoRepository)(nil)

func NewDynamoDBVideoRepository(sess *session.Session, tableName string) *DynamoDBVideoRepository {
	return &DynamoDBVideoRepository{dynamodb.New(sess), tableName}
}

func NewDynamoDBVideoRepositoryWithClient(db dynamodbiface.DynamoDBAPI, tableName string) *DynamoDBVideoRepository {
	return &DynamoDBVideoRepository{db, tableName}
}

func key(id string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{"Id": {S: aws.String(id)}}
}

func conditionFailed(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

// Save an entity to the persistence.
func (r *DynamoDBVideoRepository) Create(ctx context.Context, video *entity.Video) error {
	av, err := dynamodbattribute.MarshalMap(video)
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}
	_, err = r.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		Item:                av,
		TableName:           aws.String(r.tableName),
		ConditionExpression: aws.String("attribute_not_exists(Id)"),
	})
	if conditionFailed(err) {
		return fmt.Errorf("video ID %s already exists", video.Id)
	}
	if err != nil {
		return fmt.Errorf("failed to save data to dynamodb: %w", err)
	}
	return nil
}

// Get the video by the video ID.
func (r *DynamoDBVideoRepository) GetById(ctx context.Context, id string) (*entity.Video, error) {
	out, err := r.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		Key:       key(id),
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve the video from dynamodb: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var video *entity.Video
	if err := dynamodbattribute.UnmarshalMap(out.Item, &video); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video: %w", err)
	}
	return video, nil
}

func (r *DynamoDBVideoRepository) List(ctx context.Context, filter entity.VideoFilter, page entity.PageRequest) ([]*entity.Video, int64, error) {
	var (
		videos []*entity.Video
		uerr   error
	)
	err := r.db.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	}, func(out *dynamodb.ScanOutput, last bool) bool {
		var batch []*entity.Video
		if uerr = dynamodbattribute.UnmarshalListOfMaps(out.Items, &batch); uerr != nil {
			return false
		}
		videos = append(videos, batch...)
		return true
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan table: %w", err)
	}
	if uerr != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal videos: %w", uerr)
	}
	items, total := paginate(videos, filter, page)
	return items, total, nil
}

func (r *DynamoDBVideoRepository) IncrementViews(ctx context.Context, id string) error {
	_, err := r.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		Key:                       key(id),
		TableName:                 aws.String(r.tableName),
		UpdateExpression:          aws.String("ADD #views :one"),
		ConditionExpression:       aws.String("attribute_exists(Id)"),
		ExpressionAttributeNames:  map[string]*string{"#views": aws.String("Views")},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{":one": {N: aws.String("1")}},
	})
	if conditionFailed(err) {
		return fmt.Errorf("video ID %s does not exist", id)
	}
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}

func (r *DynamoDBVideoRepository) Delete(ctx context.Context, id string) (bool, error) {
	out, err := r.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		Key:          key(id),
		TableName:    aws.String(r.tableName),
		ReturnValues: aws.String(dynamodb.ReturnValueAllOld),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	return len(out.Attributes) > 0, nil
}
