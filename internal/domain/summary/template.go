package summary

// markdownTemplate is the installation summary skeleton. ${NAME}
// placeholders are filled from the resolved environment plus values probed
// from the running system at generation time. Placeholder names match the
// variables the pipeline steps declare.
const markdownTemplate = `# Keycloak Installation Summary

Generated: ${INSTALL_DATE}
Run: ${RUN_ID}

## Access Information

- Keycloak URL: https://${KEYCLOAK_DOMAIN}
- Admin console: https://${KEYCLOAK_DOMAIN}/admin
- Admin user: ${KEYCLOAK_ADMIN_USER}
- Admin password: ${KEYCLOAK_ADMIN_PASSWORD}

## Database

- Engine: PostgreSQL (containerized)
- Database: ${POSTGRES_DB}
- User: ${POSTGRES_USER}
- Password: ${POSTGRES_PASSWORD}

## Monitoring

- Prometheus: http://localhost:9090
- Grafana: http://localhost:3000 (admin / ${GRAFANA_ADMIN_PASSWORD})
- Alert email: ${MONITORING_ALERT_EMAIL}

## Security

- TLS certificate: /etc/letsencrypt/live/${KEYCLOAK_DOMAIN}/fullchain.pem
- Certificate expiry: ${SSL_EXPIRY_DATE}
- Firewall: ufw (deny incoming, allow 22/80/443)

## Backups

- Storage path: ${BACKUP_STORAGE_PATH}
- Schedule: ${BACKUP_SCHEDULE}
- Last backup: ${LAST_BACKUP}

## Directory Layout

- Installation: ${INSTALL_DIR}
- Settings: ${INSTALL_DIR}/settings.env
- Progress state: ${INSTALL_DIR}/.deploy-progress
- Logs: ${INSTALL_DIR}/kcmanage.log

## Service Status

${SERVICE_STATUS}

## Completed Steps

${COMPLETED_STEPS}
`
