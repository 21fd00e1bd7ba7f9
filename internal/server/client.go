package server

// ClientPath is where the hot-update client script is served.
const ClientPath = "/@preview-client.js"

// clientScript connects to /ws and applies hot-update messages. The
// component index is re-imported in place; any other update reloads the
// page that imported it.
const clientScript = `const protocol = location.protocol === 'https:' ? 'wss:' : 'ws:'
let overlay = null

function showOverlay(err) {
  hideOverlay()
  overlay = document.createElement('pre')
  overlay.id = 'preview-error-overlay'
  overlay.style.cssText = 'position:fixed;inset:0;margin:0;padding:2rem;z-index:99999;' +
    'background:rgba(0,0,0,0.85);color:#ff6b6b;font:14px/1.5 monospace;white-space:pre-wrap;overflow:auto'
  const where = err.file ? err.file + (err.line ? ':' + err.line + ':' + err.column : '') + '\n\n' : ''
  overlay.textContent = where + err.message
  overlay.onclick = hideOverlay
  document.body.appendChild(overlay)
}

function hideOverlay() {
  if (overlay) {
    overlay.remove()
    overlay = null
  }
}

async function applyUpdate(update) {
  if (update.path.endsWith('@preview/components.js')) {
    await import(update.path + '?t=' + update.timestamp)
    return
  }
  location.reload()
}

function connect() {
  const socket = new WebSocket(protocol + '//' + location.host + '/ws')

  socket.addEventListener('message', async (event) => {
    const message = JSON.parse(event.data)
    switch (message.type) {
      case 'connected':
        console.debug('[preview] connected')
        break
      case 'update':
        hideOverlay()
        for (const update of message.updates) {
          await applyUpdate(update)
        }
        break
      case 'full-reload':
        location.reload()
        break
      case 'error':
        showOverlay(message.err)
        break
    }
  })

  socket.addEventListener('close', () => {
    setTimeout(connect, 1000)
  })
}

connect()
`
