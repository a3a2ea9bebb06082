package convo

import (
	"fmt"
	"sort"
	"strings"

	"ops-bot/internal/cart"
	"ops-bot/internal/pager"
	"ops-bot/internal/repo"
	"ops-bot/internal/session"
)

// lowStock marks products that need restocking soon.
const lowStock = 5

func (e *Engine) startInventory(t *turn) (*Reply, error) {
	t.start(session.FlowInventory, session.StepBrowse)
	return e.inventory(t, 0)
}

func (e *Engine) inventory(t *turn, page int) (*Reply, error) {
	products, w, err := fetchPage(page, e.cfg.PageSize, func(p repo.Page) ([]repo.Product, int, error) {
		return e.products.ListProducts(t.ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	r := newReply(formatInventory(products, pageTitle("Inventario", w)))
	navRow(r, pager.Token{Kind: pager.KindInventory}, w)
	return withFooter(r, MenuProducts), nil
}

func formatInventory(items []repo.Product, title string) string {
	categoryMap, order := groupByCategory(items)
	if len(order) == 0 {
		return title + "\n\n" + msgEmptyList
	}

	var builder strings.Builder
	builder.WriteString(title)
	builder.WriteString("\n")
	for _, category := range order {
		builder.WriteString("\n")
		builder.WriteString(strings.ToUpper(category))
		builder.WriteString(":\n")
		for _, item := range categoryMap[category] {
			builder.WriteString("  - ")
			builder.WriteString(fmt.Sprintf("%s (%s) %s · %s", item.Name, item.Code, cart.FormatMoney(item.Price), stockLabel(item.Stock)))
			builder.WriteString("\n")
		}
	}
	return strings.TrimSpace(builder.String())
}

func stockLabel(stock int) string {
	switch {
	case stock <= 0:
		return "sin stock"
	case stock <= lowStock:
		return fmt.Sprintf("stock %d ⚠", stock)
	default:
		return fmt.Sprintf("stock %d", stock)
	}
}

// groupByCategory keeps categories in first-seen order and sorts each group
// by name.
func groupByCategory(items []repo.Product) (map[string][]repo.Product, []string) {
	grouped := map[string][]repo.Product{}
	order := []string{}
	for _, item := range items {
		category := strings.TrimSpace(item.Category)
		if category == "" {
			category = "Otros"
		}
		if _, ok := grouped[category]; !ok {
			order = append(order, category)
		}
		grouped[category] = append(grouped[category], item)
	}
	for _, categoryItems := range grouped {
		sort.SliceStable(categoryItems, func(i, j int) bool {
			return strings.ToLower(categoryItems[i].Name) < strings.ToLower(categoryItems[j].Name)
		})
	}
	return grouped, order
}
