package bot

import (
	"fmt"
	"time"

	"github.com/proxyward/proxyward/internal/chat"
	"github.com/proxyward/proxyward/internal/report"
	"github.com/proxyward/proxyward/internal/request"
	"github.com/proxyward/proxyward/internal/wizard"
)

// profileScope narrows which connection links a profile screen shows.
type profileScope int

const (
	scopeBoth profileScope = iota
	scopeTurbo
	scopeStable
)

func mainMenuKeyboard(approved bool, operator bool) chat.Keyboard {
	var rows [][]chat.Button
	if approved {
		rows = append(rows,
			chat.Row(
				chat.Callback("TURBO profile", chat.GetProfile{Mode: chat.ProfileTurbo}.Token()),
				chat.Callback("STABLE profile", chat.GetProfile{Mode: chat.ProfileStable}.Token()),
			),
			chat.Row(chat.Callback("All profiles", chat.GetProfile{Mode: chat.ProfileBoth}.Token())),
		)
	} else {
		rows = append(rows, chat.Row(chat.Callback("Request access", chat.RequestAccess{}.Token())))
	}
	rows = append(rows, chat.Row(chat.Callback("How to connect", chat.ShowGuide{}.Token())))
	if operator {
		rows = append(rows, chat.Row(chat.Callback("Operator console", chat.OperatorMenu{}.Token())))
	}
	return chat.Keyboard{Rows: rows}
}

func backToMenuKeyboard() chat.Keyboard {
	return chat.Keyboard{Rows: [][]chat.Button{
		chat.Row(chat.Callback("Back", "menu")),
	}}
}

func profileKeyboard(turbo, stable string, scope profileScope) chat.Keyboard {
	var rows [][]chat.Button
	if scope != scopeStable {
		rows = append(rows, chat.Row(chat.Link("Connect TURBO", turbo)))
	}
	if scope != scopeTurbo {
		rows = append(rows, chat.Row(chat.Link("Connect STABLE", stable)))
	}
	rows = append(rows, chat.Row(chat.Callback("Back", "menu")))
	return chat.Keyboard{Rows: rows}
}

func operatorMenuKeyboard() chat.Keyboard {
	return chat.Keyboard{Rows: [][]chat.Button{
		chat.Row(
			chat.Callback("Requests", chat.ListRequests{}.Token()),
			chat.Callback("Stuck", chat.StuckRequests{}.Token()),
		),
		chat.Row(
			chat.Callback("Stats", chat.ShowStats{}.Token()),
			chat.Callback("Clients", chat.ListClients{}.Token()),
		),
		chat.Row(chat.Callback("Back", "menu")),
	}}
}

func requestListKeyboard(fresh, stuck []request.Detail) chat.Keyboard {
	var rows [][]chat.Button
	for _, d := range fresh {
		rows = append(rows, chat.Row(chat.Callback(
			d.User.DisplayName(),
			chat.ViewRequest{RequestID: d.ID}.Token(),
		)))
	}
	for _, d := range stuck {
		rows = append(rows, chat.Row(chat.Callback(
			"[stuck] "+d.User.DisplayName(),
			chat.ViewStuck{RequestID: d.ID}.Token(),
		)))
	}
	rows = append(rows, chat.Row(chat.Callback("Back", chat.OperatorMenu{}.Token())))
	return chat.Keyboard{Rows: rows}
}

func stuckListKeyboard(stuck []request.Detail, now time.Time) chat.Keyboard {
	var rows [][]chat.Button
	for _, d := range stuck {
		rows = append(rows, chat.Row(chat.Callback(
			fmt.Sprintf("%s · %s", d.User.DisplayName(), formatAge(d.Age(now))),
			chat.ViewStuck{RequestID: d.ID}.Token(),
		)))
	}
	rows = append(rows, chat.Row(chat.Callback("Back", chat.OperatorMenu{}.Token())))
	return chat.Keyboard{Rows: rows}
}

func requestCardKeyboard(id string, pending bool) chat.Keyboard {
	if !pending {
		return chat.Keyboard{Rows: [][]chat.Button{
			chat.Row(chat.Callback("Reopen", chat.ReopenRequest{RequestID: id}.Token())),
			chat.Row(chat.Callback("Back", chat.ListRequests{}.Token())),
		}}
	}
	return chat.Keyboard{Rows: [][]chat.Button{
		chat.Row(
			chat.Callback("Quick grant", chat.QuickGrant{RequestID: id}.Token()),
			chat.Callback("Grant...", chat.StartGrant{RequestID: id}.Token()),
		),
		chat.Row(
			chat.Callback("Deny", chat.DenyRequest{RequestID: id}.Token()),
			chat.Callback("Ban", chat.BanRequest{RequestID: id}.Token()),
		),
		chat.Row(
			chat.Callback("Client card", chat.ViewProfile{RequestID: id}.Token()),
			chat.Callback("Back", chat.ListRequests{}.Token()),
		),
	}}
}

func profileCardKeyboard(id string, approved bool) chat.Keyboard {
	var rows [][]chat.Button
	if approved {
		rows = append(rows, chat.Row(chat.Callback("Revoke access", chat.RevokeAccess{RequestID: id}.Token())))
	}
	rows = append(rows, chat.Row(chat.Callback("Back to request", chat.ViewRequest{RequestID: id}.Token())))
	return chat.Keyboard{Rows: rows}
}

func wizardDevicesKeyboard(id string) chat.Keyboard {
	var row []chat.Button
	var rows [][]chat.Button
	for _, n := range wizard.DeviceChoices {
		label := formatDevices(n)
		if n == 0 {
			label = "∞"
		}
		row = append(row, chat.Callback(label, chat.SetDevices{RequestID: id, Limit: n}.Token()))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, chat.Row(chat.Callback("Cancel", chat.CancelGrant{RequestID: id}.Token())))
	return chat.Keyboard{Rows: rows}
}

func wizardExpiryKeyboard(id string) chat.Keyboard {
	var row []chat.Button
	var rows [][]chat.Button
	for _, d := range wizard.ExpiryChoices {
		label := fmt.Sprintf("%dd", d)
		if d == 0 {
			label = "forever"
		}
		row = append(row, chat.Callback(label, chat.SetExpiry{RequestID: id, Days: d}.Token()))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, chat.Row(
		chat.Callback("Back", chat.BackToDevices{RequestID: id}.Token()),
		chat.Callback("Cancel", chat.CancelGrant{RequestID: id}.Token()),
	))
	return chat.Keyboard{Rows: rows}
}

func wizardConfirmKeyboard(id string) chat.Keyboard {
	return chat.Keyboard{Rows: [][]chat.Button{
		chat.Row(chat.Callback("Confirm", chat.ConfirmGrant{RequestID: id}.Token())),
		chat.Row(
			chat.Callback("Back", chat.BackToExpiry{RequestID: id}.Token()),
			chat.Callback("Cancel", chat.CancelGrant{RequestID: id}.Token()),
		),
	}}
}

func grantDoneKeyboard() chat.Keyboard {
	return chat.Keyboard{Rows: [][]chat.Button{
		chat.Row(chat.Callback("To requests", chat.ListRequests{}.Token())),
		chat.Row(chat.Callback("Operator menu", chat.OperatorMenu{}.Token())),
	}}
}

func statsKeyboard() chat.Keyboard {
	return chat.Keyboard{Rows: [][]chat.Button{
		chat.Row(chat.Callback("Back", chat.OperatorMenu{}.Token())),
	}}
}

func clientsKeyboard(p report.ClientsPage) chat.Keyboard {
	var nav []chat.Button
	if p.HasPrev {
		nav = append(nav, chat.Callback("Prev", chat.ListClients{Page: p.Page - 1}.Token()))
	}
	if p.HasNext {
		nav = append(nav, chat.Callback("Next", chat.ListClients{Page: p.Page + 1}.Token()))
	}
	var rows [][]chat.Button
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, chat.Row(
		chat.Callback("Refresh", chat.ListClients{Page: p.Page}.Token()),
		chat.Callback("Back", chat.OperatorMenu{}.Token()),
	))
	return chat.Keyboard{Rows: rows}
}

func operatorNoticeKeyboard(id string) chat.Keyboard {
	return chat.Keyboard{Rows: [][]chat.Button{
		chat.Row(chat.Callback("Review", chat.ViewRequest{RequestID: id}.Token())),
	}}
}
