package backend

// API groups the endpoint façades over one client.
type API struct {
	Monitor   *MonitorAPI
	Settings  *SettingsAPI
	Logs      *LogsAPI
	Stats     *StatsAPI
	Cameras   *CamerasAPI
	Videos    *VideosAPI
	Analytics *AnalyticsAPI
	Dashboard *DashboardAPI
}

func NewAPI(c *Client) *API {
	return &API{
		Monitor:   &MonitorAPI{c: c},
		Settings:  &SettingsAPI{c: c},
		Logs:      &LogsAPI{c: c},
		Stats:     &StatsAPI{c: c},
		Cameras:   &CamerasAPI{c: c},
		Videos:    &VideosAPI{c: c},
		Analytics: &AnalyticsAPI{c: c},
		Dashboard: &DashboardAPI{c: c},
	}
}
