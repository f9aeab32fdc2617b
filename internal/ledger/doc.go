// Package ledger is the cash session and order ledger engine.
//
// OrderBuilder composes sale and purchase orders line by line, keeping every
// line subtotal and the order totals consistent with two-decimal rounding.
// SessionManager owns a cashier's cash session and its manual movements, and
// Reconcile derives the theoretical cash balance from a session.
//
// Stock bounds enforced here are advisory. The backend behind
// OrderPersistence is authoritative and may still reject a submit.
package ledger
