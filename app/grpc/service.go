package grpc

import (
	"context"

	"github.com/vibast-solutions/ms-go-billing/app/types"
	"google.golang.org/grpc"
)

const (
	BillingServiceName = "billing.BillingService"

	BillingService_ListPlans_FullMethodName             = "/billing.BillingService/ListPlans"
	BillingService_StartCheckout_FullMethodName         = "/billing.BillingService/StartCheckout"
	BillingService_ActivateFreePlan_FullMethodName      = "/billing.BillingService/ActivateFreePlan"
	BillingService_GetSubscription_FullMethodName       = "/billing.BillingService/GetSubscription"
	BillingService_ListSubscriptions_FullMethodName     = "/billing.BillingService/ListSubscriptions"
	BillingService_GetActiveSubscription_FullMethodName = "/billing.BillingService/GetActiveSubscription"
	BillingService_CancelSubscription_FullMethodName    = "/billing.BillingService/CancelSubscription"
	BillingService_GetUsage_FullMethodName              = "/billing.BillingService/GetUsage"
	BillingService_CanConsume_FullMethodName            = "/billing.BillingService/CanConsume"
	BillingService_HasFeature_FullMethodName            = "/billing.BillingService/HasFeature"
)

type BillingServiceServer interface {
	ListPlans(context.Context, *types.ListPlansRequest) (*types.ListPlansResponse, error)
	StartCheckout(context.Context, *types.CheckoutRequest) (*types.CheckoutResponse, error)
	ActivateFreePlan(context.Context, *types.ActivateFreePlanRequest) (*types.SubscriptionEnvelopeResponse, error)
	GetSubscription(context.Context, *types.GetSubscriptionRequest) (*types.SubscriptionEnvelopeResponse, error)
	ListSubscriptions(context.Context, *types.ListSubscriptionsRequest) (*types.ListSubscriptionsResponse, error)
	GetActiveSubscription(context.Context, *types.GetActiveSubscriptionRequest) (*types.ActiveSubscriptionResponse, error)
	CancelSubscription(context.Context, *types.CancelSubscriptionRequest) (*types.SubscriptionEnvelopeResponse, error)
	GetUsage(context.Context, *types.GetUsageRequest) (*types.UsageResponse, error)
	CanConsume(context.Context, *types.CanConsumeRequest) (*types.UsageDecision, error)
	HasFeature(context.Context, *types.HasFeatureRequest) (*types.HasFeatureResponse, error)
}

var BillingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: BillingServiceName,
	HandlerType: (*BillingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListPlans", Handler: unaryHandler(BillingService_ListPlans_FullMethodName, BillingServiceServer.ListPlans)},
		{MethodName: "StartCheckout", Handler: unaryHandler(BillingService_StartCheckout_FullMethodName, BillingServiceServer.StartCheckout)},
		{MethodName: "ActivateFreePlan", Handler: unaryHandler(BillingService_ActivateFreePlan_FullMethodName, BillingServiceServer.ActivateFreePlan)},
		{MethodName: "GetSubscription", Handler: unaryHandler(BillingService_GetSubscription_FullMethodName, BillingServiceServer.GetSubscription)},
		{MethodName: "ListSubscriptions", Handler: unaryHandler(BillingService_ListSubscriptions_FullMethodName, BillingServiceServer.ListSubscriptions)},
		{MethodName: "GetActiveSubscription", Handler: unaryHandler(BillingService_GetActiveSubscription_FullMethodName, BillingServiceServer.GetActiveSubscription)},
		{MethodName: "CancelSubscription", Handler: unaryHandler(BillingService_CancelSubscription_FullMethodName, BillingServiceServer.CancelSubscription)},
		{MethodName: "GetUsage", Handler: unaryHandler(BillingService_GetUsage_FullMethodName, BillingServiceServer.GetUsage)},
		{MethodName: "CanConsume", Handler: unaryHandler(BillingService_CanConsume_FullMethodName, BillingServiceServer.CanConsume)},
		{MethodName: "HasFeature", Handler: unaryHandler(BillingService_HasFeature_FullMethodName, BillingServiceServer.HasFeature)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterBillingServiceServer(s grpc.ServiceRegistrar, srv BillingServiceServer) {
	s.RegisterService(&BillingService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](fullMethod string, call func(BillingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BillingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(BillingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BillingServiceClient calls the billing service using the JSON codec.
type BillingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBillingServiceClient(cc grpc.ClientConnInterface) *BillingServiceClient {
	return &BillingServiceClient{cc: cc}
}

func (c *BillingServiceClient) ListPlans(ctx context.Context, in *types.ListPlansRequest, opts ...grpc.CallOption) (*types.ListPlansResponse, error) {
	return invoke[types.ListPlansResponse](ctx, c.cc, BillingService_ListPlans_FullMethodName, in, opts)
}

func (c *BillingServiceClient) StartCheckout(ctx context.Context, in *types.CheckoutRequest, opts ...grpc.CallOption) (*types.CheckoutResponse, error) {
	return invoke[types.CheckoutResponse](ctx, c.cc, BillingService_StartCheckout_FullMethodName, in, opts)
}

func (c *BillingServiceClient) ActivateFreePlan(ctx context.Context, in *types.ActivateFreePlanRequest, opts ...grpc.CallOption) (*types.SubscriptionEnvelopeResponse, error) {
	return invoke[types.SubscriptionEnvelopeResponse](ctx, c.cc, BillingService_ActivateFreePlan_FullMethodName, in, opts)
}

func (c *BillingServiceClient) GetSubscription(ctx context.Context, in *types.GetSubscriptionRequest, opts ...grpc.CallOption) (*types.SubscriptionEnvelopeResponse, error) {
	return invoke[types.SubscriptionEnvelopeResponse](ctx, c.cc, BillingService_GetSubscription_FullMethodName, in, opts)
}

func (c *BillingServiceClient) ListSubscriptions(ctx context.Context, in *types.ListSubscriptionsRequest, opts ...grpc.CallOption) (*types.ListSubscriptionsResponse, error) {
	return invoke[types.ListSubscriptionsResponse](ctx, c.cc, BillingService_ListSubscriptions_FullMethodName, in, opts)
}

func (c *BillingServiceClient) GetActiveSubscription(ctx context.Context, in *types.GetActiveSubscriptionRequest, opts ...grpc.CallOption) (*types.ActiveSubscriptionResponse, error) {
	return invoke[types.ActiveSubscriptionResponse](ctx, c.cc, BillingService_GetActiveSubscription_FullMethodName, in, opts)
}

func (c *BillingServiceClient) CancelSubscription(ctx context.Context, in *types.CancelSubscriptionRequest, opts ...grpc.CallOption) (*types.SubscriptionEnvelopeResponse, error) {
	return invoke[types.SubscriptionEnvelopeResponse](ctx, c.cc, BillingService_CancelSubscription_FullMethodName, in, opts)
}

func (c *BillingServiceClient) GetUsage(ctx context.Context, in *types.GetUsageRequest, opts ...grpc.CallOption) (*types.UsageResponse, error) {
	return invoke[types.UsageResponse](ctx, c.cc, BillingService_GetUsage_FullMethodName, in, opts)
}

func (c *BillingServiceClient) CanConsume(ctx context.Context, in *types.CanConsumeRequest, opts ...grpc.CallOption) (*types.UsageDecision, error) {
	return invoke[types.UsageDecision](ctx, c.cc, BillingService_CanConsume_FullMethodName, in, opts)
}

func (c *BillingServiceClient) HasFeature(ctx context.Context, in *types.HasFeatureRequest, opts ...grpc.CallOption) (*types.HasFeatureResponse, error) {
	return invoke[types.HasFeatureResponse](ctx, c.cc, BillingService_HasFeature_FullMethodName, in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}
