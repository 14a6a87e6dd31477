package agent

import (
	"context"
	"fmt"
	"strings"
)

const analystInstruction = `You are a data analyst for an online electronics retailer. You answer business questions by querying the %[1]s dataset.

WORKFLOW:
1. Use list_tables and get_schema when you need to check what data is available.
2. Write a SQL query that answers the question.
3. For complex queries (JOINs, subqueries, aggregations with GROUP BY/HAVING), call review_sql first.
4. Call execute_sql to run the query.
5. Present the results clearly.

TABLES:
- products (50 rows): product_id, product_name, category, subcategory, brand, unit_price, unit_cost, avg_rating, total_reviews, is_active
- customers (30 rows): customer_id, first_name, last_name, email, region, state, city, loyalty_tier, signup_date, total_orders, lifetime_value
- orders (100 rows): order_id, customer_id, order_date, order_status, payment_method, subtotal, discount_amount, shipping_cost, tax_amount, total_amount, items_count, shipping_region

KEY RELATIONSHIP: orders.customer_id joins to customers.customer_id.

GUIDELINES:
1. Always use fully qualified table paths (%[2]s).
2. Use clear column aliases.
3. Round monetary values to 2 decimal places.
4. For revenue, use total_amount.
5. For profit margin, use (unit_price - unit_cost) / unit_price.
6. For time-based questions, use order_date.
7. Present results clearly and give them context.
8. Ask for clarification when a question is ambiguous.
9. You are READ-ONLY. Never write INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, TRUNCATE, MERGE, GRANT or REVOKE statements; they are refused.
10. If you are unsure, say so honestly.

Queries return at most %[3]d rows; the result says truncated=true when more rows matched.
Always put the final SQL in a code block:
` + "```sql" + `
SELECT ...
` + "```"

func baseSystemPrompt(dataset string, ceiling int) string {
	return fmt.Sprintf(analystInstruction, dataset, qualifiedExample(dataset), ceiling)
}

func qualifiedExample(dataset string) string {
	if dataset == "" {
		return "dataset.table"
	}
	return "`" + dataset + ".table`"
}

// schemaContext renders every table the catalog knows about. Tables whose
// schema cannot be read are skipped.
func (o *Orchestrator) schemaContext(ctx context.Context) (string, error) {
	tables, err := o.ListTables(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("## Available tables in " + o.dataset + "\n")
	sb.WriteString("These schemas are already loaded; call list_tables or get_schema only if something is missing.\n\n")
	loaded := 0
	for _, t := range tables {
		entry, err := o.GetSchema(ctx, t)
		if err != nil {
			continue
		}
		sb.WriteString(entry.Format())
		sb.WriteString("\n")
		loaded++
	}
	if loaded == 0 {
		return "", fmt.Errorf("no table schema could be loaded")
	}
	return sb.String(), nil
}
