package controllers

import (
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/orderdesk/app/models"
	"github.com/shashiranjanraj/orderdesk/app/services"
	gql "github.com/shashiranjanraj/orderdesk/pkg/graphql"
)

// GraphQLController exposes orders and stats at POST /graphql.
type GraphQLController struct {
	orders *services.OrderManager
	schema graphql.Schema
}

func NewGraphQLController(orders *services.OrderManager) (*GraphQLController, error) {
	gc := &GraphQLController{orders: orders}

	schema, err := gql.NewSchema(gc.queryType(), gc.mutationType())
	if err != nil {
		return nil, err
	}
	gc.schema = schema
	return gc, nil
}

// Handle serves POST /graphql.
func (gc *GraphQLController) Handle(w http.ResponseWriter, r *http.Request) {
	gql.Handler(gc.schema)(w, r)
}

var customerType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Customer",
	Fields: graphql.Fields{
		"name":    &graphql.Field{Type: graphql.String},
		"phone":   &graphql.Field{Type: graphql.String},
		"address": &graphql.Field{Type: graphql.String},
	},
})

var itemType = graphql.NewObject(graphql.ObjectConfig{
	Name: "OrderItem",
	Fields: graphql.Fields{
		"name":  &graphql.Field{Type: graphql.String},
		"price": &graphql.Field{Type: graphql.Float},
		"qty":   &graphql.Field{Type: graphql.Int},
	},
})

var orderType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Order",
	Fields: graphql.Fields{
		"id":                  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"customer":            &graphql.Field{Type: customerType},
		"items":               &graphql.Field{Type: graphql.NewList(itemType)},
		"specialInstructions": &graphql.Field{Type: graphql.String},
		"paymentMethod":       &graphql.Field{Type: graphql.String},
		"subtotal":            &graphql.Field{Type: graphql.Float},
		"deliveryFee":         &graphql.Field{Type: graphql.Float},
		"total":               &graphql.Field{Type: graphql.Float},
		"status": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if o, ok := p.Source.(models.Order); ok {
					return string(o.Status), nil
				}
				return nil, nil
			},
		},
		"createdAt": &graphql.Field{Type: graphql.DateTime},
		"updatedAt": &graphql.Field{Type: graphql.DateTime},
	},
})

var statsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "OrderStats",
	Fields: graphql.Fields{
		"totalOrders":  &graphql.Field{Type: graphql.Int},
		"activeOrders": &graphql.Field{Type: graphql.Int},
	},
})

func (gc *GraphQLController) queryType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"orders": &graphql.Field{
				Type: graphql.NewList(orderType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return gc.orders.ListOrders(p.Context)
				},
			},
			"order": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					return gc.orders.GetOrder(p.Context, id)
				},
			},
			"stats": &graphql.Field{
				Type: statsType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return gc.orders.Stats(p.Context)
				},
			},
		},
	})
}

func (gc *GraphQLController) mutationType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"updateOrderStatus": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{
					"id":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"status": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					status, _ := p.Args["status"].(string)
					return gc.orders.ChangeStatus(p.Context, id, models.OrderStatus(status))
				},
			},
		},
	})
}
