package dashboard

const pageStyle = `
:root{--bg:#f8fafc;--surface:#ffffff;--border:#e2e8f0;--text:#0f172a;--text-dim:#475569;--accent:#3b82f6;--red:#ef4444;--green:#22c55e}
.theme-dark{--bg:#0f172a;--surface:#1e293b;--border:#334155;--text:#e2e8f0;--text-dim:#94a3b8}
*{margin:0;padding:0;box-sizing:border-box}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:var(--bg);color:var(--text);min-height:100vh;transition:background .3s,color .3s}
.btn{display:inline-block;padding:6px 14px;border-radius:6px;font-size:12px;font-weight:600;border:none;cursor:pointer;background:var(--accent);color:#fff;text-decoration:none}
.btn:hover{background:#2563eb}
`

const loadingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>` + pageStyle + `
.loading-screen{display:flex;flex-direction:column;align-items:center;justify-content:center;min-height:100vh;gap:18px}
.loading-logo{font-size:42px;opacity:0;animation:fade-in 1s ease-out forwards}
.loading-title{font-size:20px;font-weight:700}
.server-container{display:flex;gap:14px}
.server{width:38px;height:58px;border-radius:6px;background:var(--accent);opacity:0;animation:bounce-in .8s ease-out forwards,glow 1.5s ease-in-out infinite alternate}
.server:nth-child(2){animation-delay:.2s,0s}.server:nth-child(3){animation-delay:.4s,0s}
.loading-text{color:var(--text-dim);animation:pulse 1s ease-in-out infinite alternate}
@keyframes fade-in{from{opacity:0;transform:translateY(-20px)}to{opacity:1;transform:none}}
@keyframes bounce-in{from{opacity:0;transform:translateY(20px)}to{opacity:1;transform:none}}
@keyframes glow{to{box-shadow:0 0 15px rgba(0,162,255,.8)}}
@keyframes pulse{to{opacity:.5}}
</style>
</head>
<body class="theme-{{.Theme}}">
<div class="loading-screen">
<div class="loading-logo">&#128421;</div>
<h2 class="loading-title">Memory Efficient Load Balancer</h2>
<div class="server-container"><div class="server"></div><div class="server"></div><div class="server"></div></div>
<p class="loading-text">Loading...</p>
</div>
<script>
(function poll(){
  fetch('/api/state',{cache:'no-store'}).then(function(r){return r.json()}).then(function(s){
    if(s.state==='ready'){location.reload();return}
    setTimeout(poll,500);
  }).catch(function(){setTimeout(poll,1000)});
})();
</script>
</body>
</html>`

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>` + pageStyle + `
.navbar{background:var(--surface);border-bottom:1px solid var(--border);padding:10px 20px;display:flex;align-items:center;gap:12px;position:sticky;top:0;z-index:100}
.navbar-title{font-size:18px;font-weight:700;flex:1;background:linear-gradient(90deg,#3b82f6,#a855f7);-webkit-background-clip:text;background-clip:text;color:transparent}
.clock{font-variant-numeric:tabular-nums;font-weight:600}
.app-container{animation:rise 1s ease-out}
@keyframes rise{from{opacity:0;transform:translateY(50px)}to{opacity:1;transform:none}}
section{max-width:1200px;margin:0 auto;padding:24px 20px}
section h1{font-size:22px;margin-bottom:6px}section h2{font-size:17px;margin-bottom:6px}
section p{color:var(--text-dim);margin-bottom:12px}
.card{background:var(--surface);border:1px solid var(--border);border-radius:10px;padding:16px;margin-bottom:14px}
.card ul{margin:6px 0 10px 20px;font-size:13px}
.probe{display:flex;align-items:center;gap:8px;font-size:13px}
.probe .dot{width:9px;height:9px;border-radius:50%;background:var(--text-dim)}
.probe.ok .dot{background:var(--green)}.probe.failed .dot{background:var(--red)}
.probe.failed{color:var(--red)}
</style>
</head>
<body class="theme-{{.Theme}}">
<div class="app-container">
<nav class="navbar">
<h1 class="navbar-title">{{.Title}}</h1>
<span class="clock" id="clock">{{.Now}}</span>
<button class="btn" id="theme-toggle" type="button">{{if eq .Theme "dark"}}Light mode{{else}}Dark mode{{end}}</button>
</nav>
<div class="content">
<section class="admin-dashboard">
<h1>Admin Dashboard</h1>
<p>Welcome to the centralized monitoring system.</p>
<div class="card">
<h2>Memory-Efficient Load Balancer</h2>
<p><strong>Features:</strong></p>
<ul><li>Forward &amp; Reverse Proxy</li><li>High Performance Routing</li><li>Load Distribution</li><li>Security Enhancements</li></ul>
<p><strong>Objectives:</strong></p>
<ul><li>Efficient Resource Utilization</li><li>Fault Tolerance</li><li>Scalability</li></ul>
</div>
{{if .MetricsPath}}<div class="card"><div class="probe" id="probe"><span class="dot"></span><span id="probe-text">Checking {{.MetricsPath}}...</span></div></div>{{end}}
<a href="#grafana" class="btn">View Grafana Dashboard</a>
</section>
<section id="grafana">
<h1>Grafana Dashboard</h1>
<p>Real-time monitoring with Grafana.</p>
<iframe src="{{.GrafanaURL}}" width="100%" height="800" style="border:none;max-width:100%" title="Grafana Dashboard"></iframe>
</section>
<section>
<h2>Prometheus Monitoring</h2>
<p>Collect and store time-series data with PromQL.</p>
<a href="{{.PrometheusURL}}" target="_blank" rel="noopener noreferrer" class="btn">Open Prometheus</a>
</section>
<section>
<h2>Load Balancer Optimization</h2>
<p>Smart traffic routing for high availability and efficiency.</p>
<a href="{{.ProjectURL}}" target="_blank" rel="noopener noreferrer" class="btn">Learn More</a>
</section>
</div>
</div>
<script>
(function(){
  var clock=document.getElementById('clock');
  var es=new EventSource('/api/clock');
  es.onmessage=function(e){clock.textContent=new Date(e.data).toLocaleTimeString()};
  window.addEventListener('beforeunload',function(){es.close()});

  var btn=document.getElementById('theme-toggle');
  btn.addEventListener('click',function(){
    fetch('/api/theme',{method:'POST'}).then(function(r){return r.json()}).then(function(s){
      document.body.className='theme-'+s.theme;
      btn.textContent=s.theme==='dark'?'Light mode':'Dark mode';
    });
  });

  var probe=document.getElementById('probe');
  if(!probe)return;
  var text=document.getElementById('probe-text');
  fetch({{.MetricsPath}},{cache:'no-store'}).then(function(r){
    if(r.headers.get('X-Proxy-Error')==='forwarding-failed'){
      probe.className='probe failed';
      text.textContent='Metrics forwarding failed ('+r.status+')';
      return;
    }
    return r.text().then(function(body){
      probe.className='probe ok';
      text.textContent='Metrics reachable ('+body.split('\n').filter(function(l){return l&&l[0]!=='#'}).length+' series)';
    });
  }).catch(function(){
    probe.className='probe failed';
    text.textContent='Metrics forwarding failed';
  });
})();
</script>
</body>
</html>`
