// Package fulfillment contains the Fulfillment bounded context.
// This context decides how orders arriving from the order-management platform
// are partitioned into single-product-family shipments.
//
// Key concepts:
//   - FamilyTag: canonical product family derived from a line item SKU
//   - SplitGroup: the distinct families present on an order
//   - SplitPlan: the decision and the derived order records for one order
//   - Gateway: port interface for fetching and submitting orders
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package fulfillment
