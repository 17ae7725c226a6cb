package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type pane int

const (
	paneDevices pane = iota
	paneDeployments
)

type devicesMsg []DeviceEntry
type deploymentsMsg []DeploymentEntry
type actionDoneMsg string

type DashboardModel struct {
	Session     *Session
	Pane        pane
	Devices     table.Model
	Deployments table.Model
	Status      string
	Err         error
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	return s
}

func NewDashboardModel(s *Session, width, height int) DashboardModel {
	devCols := []table.Column{
		{Title: "Device ID", Width: 14},
		{Title: "MAC", Width: 18},
		{Title: "Hostname", Width: 20},
		{Title: "Status", Width: 12},
		{Title: "Image", Width: 36},
		{Title: "Last Contact", Width: 20},
	}
	depCols := []table.Column{
		{Title: "Deployment", Width: 36},
		{Title: "Image", Width: 36},
		{Title: "Method", Width: 8},
		{Title: "Status", Width: 12},
		{Title: "Progress", Width: 9},
	}

	h := height - 10
	if h < 5 {
		h = 5
	}
	devices := table.New(table.WithColumns(devCols), table.WithFocused(true), table.WithHeight(h))
	devices.SetStyles(tableStyles())
	deployments := table.New(table.WithColumns(depCols), table.WithHeight(h))
	deployments.SetStyles(tableStyles())

	return DashboardModel{
		Session:     s,
		Devices:     devices,
		Deployments: deployments,
	}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.refreshDevices, m.refreshDeployments)
}

func (m DashboardModel) refreshDevices() tea.Msg {
	devs, err := m.Session.ListDevices()
	if err != nil {
		return errMsg(err)
	}
	return devicesMsg(devs)
}

func (m DashboardModel) refreshDeployments() tea.Msg {
	deps, err := m.Session.ListDeployments()
	if err != nil {
		return errMsg(err)
	}
	return deploymentsMsg(deps)
}

func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab":
			if m.Pane == paneDevices {
				m.Pane = paneDeployments
				m.Devices.Blur()
				m.Deployments.Focus()
			} else {
				m.Pane = paneDevices
				m.Deployments.Blur()
				m.Devices.Focus()
			}
			return m, nil
		case "r":
			m.Err = nil
			return m, tea.Batch(m.refreshDevices, m.refreshDeployments)
		case "p":
			if m.Pane == paneDevices {
				if row := m.Devices.SelectedRow(); len(row) > 0 {
					id := row[0]
					return m, func() tea.Msg {
						if err := m.Session.PingDevice(id); err != nil {
							return errMsg(err)
						}
						return actionDoneMsg("ping queued for " + id)
					}
				}
			}
		case "c":
			if m.Pane == paneDeployments {
				if row := m.Deployments.SelectedRow(); len(row) > 0 {
					id := row[0]
					return m, func() tea.Msg {
						if err := m.Session.CancelDeployment(id); err != nil {
							return errMsg(err)
						}
						return actionDoneMsg("cancel requested for " + id)
					}
				}
			}
		case "q":
			return m, tea.Quit
		}

	case devicesMsg:
		rows := make([]table.Row, 0, len(msg))
		for _, d := range msg {
			last := "never"
			if d.LastContact != nil {
				last = d.LastContact.Local().Format(time.DateTime)
			}
			rows = append(rows, table.Row{d.ID, d.MACAddress, d.Hostname, d.Status, d.CurrentImageID, last})
		}
		m.Devices.SetRows(rows)

	case deploymentsMsg:
		rows := make([]table.Row, 0, len(msg))
		for _, d := range msg {
			rows = append(rows, table.Row{d.ID, d.ImageID, d.Method, d.Status, fmt.Sprintf("%d%%", d.Progress)})
		}
		m.Deployments.SetRows(rows)

	case actionDoneMsg:
		m.Status = string(msg)
		return m, tea.Batch(m.refreshDevices, m.refreshDeployments)

	case errMsg:
		m.Err = msg
	}

	if m.Pane == paneDevices {
		m.Devices, cmd = m.Devices.Update(msg)
	} else {
		m.Deployments, cmd = m.Deployments.Update(msg)
	}
	return m, cmd
}

func (m DashboardModel) View() string {
	var b strings.Builder

	if m.Pane == paneDevices {
		b.WriteString(titleStyle.Render("Fleet - Devices") + "\n\n")
		b.WriteString(m.Devices.View())
	} else {
		b.WriteString(titleStyle.Render("Fleet - Deployments") + "\n\n")
		b.WriteString(m.Deployments.View())
	}
	b.WriteString("\n\n")
	b.WriteString(blurredStyle.Render("Tab switch pane, r refresh, p ping device, c cancel deployment, q quit"))

	if m.Status != "" {
		b.WriteString("\n" + statusOnlineStyle(m.Status))
	}
	if m.Err != nil {
		b.WriteString("\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}
