package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"github.com/smallbiznis/creditgate/internal/payment/domain"
)

const backend = "dynamodb"

// API is the subset of the DynamoDB client the repository needs.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type Repository struct {
	client  API
	table   string
	metrics *metrics.StoreMetrics
	now     func() time.Time
}

func New(client API, table string, m *metrics.StoreMetrics) *Repository {
	return &Repository{
		client:  client,
		table:   table,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var _ domain.Repository = (*Repository)(nil)

func (r *Repository) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	start := time.Now()
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		err = domain.StoreUnavailable(err)
		r.metrics.Track(backend, "get", start, err)
		return nil, err
	}
	r.metrics.Track(backend, "get", start, nil)
	if len(out.Item) == 0 {
		return nil, nil
	}
	return decode(out.Item)
}

func (r *Repository) Put(ctx context.Context, record *domain.PaymentRecord) error {
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return domain.ErrInvalidPayment
	}
	now := r.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	av, err := attributevalue.MarshalMap(fromRecord(record))
	if err != nil {
		return domain.StoreUnavailable(fmt.Errorf("encode payment item: %w", err))
	}

	start := time.Now()
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if isConditionFailed(err) {
		r.metrics.Track(backend, "put", start, nil)
		return domain.ErrPaymentExists
	}
	if err != nil {
		err = domain.StoreUnavailable(err)
	}
	r.metrics.Track(backend, "put", start, err)
	return err
}

func (r *Repository) ConditionalIncrement(ctx context.Context, id string, field domain.Field, guard domain.Guard) (*domain.PaymentRecord, error) {
	if field != domain.FieldCreditsUsed {
		return nil, domain.ErrInvalidField
	}
	condition, names, values, err := conditionExpression(guard)
	if err != nil {
		return nil, err
	}
	values[":zero"] = &types.AttributeValueMemberN{Value: "0"}
	values[":inc"] = &types.AttributeValueMemberN{Value: "1"}
	values[":now"] = timeValue(r.now())

	start := time.Now()
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       r.key(id),
		UpdateExpression:          aws.String("SET credits_used = if_not_exists(credits_used, :zero) + :inc, updated_at = :now"),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		r.metrics.Track(backend, "conditional_increment", start, nil)
		return nil, domain.ErrConditionFailed
	}
	if err != nil {
		err = domain.StoreUnavailable(err)
		r.metrics.Track(backend, "conditional_increment", start, err)
		return nil, err
	}
	r.metrics.Track(backend, "conditional_increment", start, nil)
	return decode(out.Attributes)
}

func (r *Repository) SetStatus(ctx context.Context, id string, status domain.Status, defaultCreditsTotal int) (*domain.PaymentRecord, error) {
	condition := "attribute_exists(id)"
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(status)},
		":total":  intValue(defaultCreditsTotal),
		":now":    timeValue(r.now()),
	}
	if status != domain.StatusSucceeded {
		condition += " AND #status <> :succeeded"
		values[":succeeded"] = &types.AttributeValueMemberS{Value: string(domain.StatusSucceeded)}
	}

	start := time.Now()
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       r.key(id),
		UpdateExpression:          aws.String("SET #status = :status, credits_total = if_not_exists(credits_total, :total), updated_at = :now"),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeNames:  map[string]string{"#status": "stripe_payment_status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		r.metrics.Track(backend, "set_status", start, nil)
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, domain.ErrPaymentNotFound
		}
		return current, nil
	}
	if err != nil {
		err = domain.StoreUnavailable(err)
		r.metrics.Track(backend, "set_status", start, err)
		return nil, err
	}
	r.metrics.Track(backend, "set_status", start, nil)
	return decode(out.Attributes)
}

// conditionExpression renders guard in DynamoDB condition syntax.
func conditionExpression(guard domain.Guard) (string, map[string]string, map[string]types.AttributeValue, error) {
	if err := guard.Validate(); err != nil {
		return "", nil, nil, err
	}
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	clauses := []string{"attribute_exists(id)"}
	for _, p := range guard {
		switch p.Op {
		case domain.OpEq:
			names["#status"] = "stripe_payment_status"
			values[":succeeded"] = &types.AttributeValueMemberS{Value: string(p.Value.(domain.Status))}
			clauses = append(clauses, "#status = :succeeded")
		case domain.OpAbsentOrLessThanField:
			clauses = append(clauses, "(attribute_not_exists("+string(p.Field)+") OR "+string(p.Field)+" < "+string(p.Other)+")")
		}
	}
	if len(names) == 0 {
		names = nil
	}
	return strings.Join(clauses, " AND "), names, values, nil
}

func decode(av map[string]types.AttributeValue) (*domain.PaymentRecord, error) {
	var it item
	// A row this store cannot read is a store fault, not a missing payment.
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return nil, domain.StoreUnavailable(fmt.Errorf("decode payment item: %w", err))
	}
	return it.toRecord(), nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func intValue(v int) types.AttributeValue {
	av, _ := attributevalue.Marshal(v)
	return av
}

func timeValue(t time.Time) types.AttributeValue {
	av, _ := attributevalue.Marshal(t)
	return av
}
